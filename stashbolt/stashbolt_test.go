package stashbolt

import (
	"path/filepath"
	"testing"

	"github.com/ruleline/ruleline/core"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "stash.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoad(t *testing.T) {
	s := openStore(t)

	p, err := core.NewParser(nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Prestash("threshold", int64(5))
	p.Prestash("owner", "ops")

	if err := s.Save("logs", p); err != nil {
		t.Fatal(err)
	}

	q, err := core.NewParser(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load("logs", q); err != nil {
		t.Fatal(err)
	}

	if v, _ := q.Stashed("owner"); v != "ops" {
		t.Fatalf("owner = %#v", v)
	}
	// JSON numbers come back as float64.
	if v, _ := q.Stashed("threshold"); v != float64(5) {
		t.Fatalf("threshold = %#v", v)
	}
}

func TestLoadMissingBucket(t *testing.T) {
	s := openStore(t)
	p, err := core.NewParser(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load("nothing", p); err != nil {
		t.Fatal(err)
	}
	if !p.HasEmptyStash() {
		t.Fatal("stash not empty")
	}
}

func TestSaveReplaces(t *testing.T) {
	s := openStore(t)

	p, err := core.NewParser(nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Prestash("old", "gone soon")
	if err := s.Save("logs", p); err != nil {
		t.Fatal(err)
	}

	p.Forget("old")
	p.Prestash("new", "kept")
	if err := s.Save("logs", p); err != nil {
		t.Fatal(err)
	}

	q, err := core.NewParser(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load("logs", q); err != nil {
		t.Fatal(err)
	}
	if q.HasStashed("old") {
		t.Fatal("old entry survived")
	}
	if v, _ := q.Stashed("new"); v != "kept" {
		t.Fatalf("new = %#v", v)
	}
}

func TestForget(t *testing.T) {
	s := openStore(t)

	p, err := core.NewParser(nil)
	if err != nil {
		t.Fatal(err)
	}
	p.Prestash("x", 1)
	if err := s.Save("logs", p); err != nil {
		t.Fatal(err)
	}
	if err := s.Forget("logs"); err != nil {
		t.Fatal(err)
	}

	q, err := core.NewParser(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Load("logs", q); err != nil {
		t.Fatal(err)
	}
	if !q.HasEmptyStash() {
		t.Fatal("bucket survived Forget")
	}
}
