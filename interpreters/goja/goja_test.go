package goja

import (
	"context"
	"testing"
	"time"

	"github.com/ruleline/ruleline/core"
)

func exec(t *testing.T, lc *core.LineContext, code string) interface{} {
	t.Helper()
	i := NewInterpreter()
	v, err := i.Exec(context.Background(), lc, code, nil)
	if err != nil {
		t.Fatalf("Exec(%q): %v", code, err)
	}
	return v
}

func lineContext(t *testing.T, line string, fields ...string) *core.LineContext {
	t.Helper()
	p, err := core.NewParser(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &core.LineContext{
		Line:   line,
		Fields: fields,
		NR:     1,
		Parser: p,
	}
}

func TestExprFields(t *testing.T) {
	lc := lineContext(t, "a b c", "a", "b", "c")

	if v := exec(t, lc, `$1`); v != "a" {
		t.Fatalf("got %#v", v)
	}
	if v := exec(t, lc, `${-1}`); v != "c" {
		t.Fatalf("got %#v", v)
	}
	if v := exec(t, lc, `${2+}`); v != "b c" {
		t.Fatalf("got %#v", v)
	}
	if v := exec(t, lc, `$0`); v != "a b c" {
		t.Fatalf("got %#v", v)
	}
	if v := exec(t, lc, `NF`); v != int64(3) {
		t.Fatalf("got %#v", v)
	}
}

func TestExprComparisons(t *testing.T) {
	lc := lineContext(t, "ERROR: x", "ERROR:", "x")

	if v := exec(t, lc, `$1 eq "ERROR:"`); v != true {
		t.Fatalf("got %#v", v)
	}
	if v := exec(t, lc, `$1 ne "ERROR:"`); v != false {
		t.Fatalf("got %#v", v)
	}
}

func TestExprStash(t *testing.T) {
	lc := lineContext(t, "x", "x")

	exec(t, lc, `~n = 1`)
	if v, _ := lc.Parser.Stashed("n"); v != int64(1) {
		t.Fatalf("n = %#v", v)
	}
	exec(t, lc, `~n++`)
	if v, _ := lc.Parser.Stashed("n"); v != int64(2) {
		t.Fatalf("n = %#v", v)
	}
	exec(t, lc, `delete ~n`)
	if lc.Parser.HasStashed("n") {
		t.Fatal("n survived delete")
	}
}

func TestExprBuiltins(t *testing.T) {
	lc := lineContext(t, "Hello", "Hello")

	if v := exec(t, lc, `upper(substr($1, 0, 1))`); v != "H" {
		t.Fatalf("got %#v", v)
	}
	if v := exec(t, lc, `lower($1)`); v != "hello" {
		t.Fatalf("got %#v", v)
	}
	if v := exec(t, lc, `esc("a b")`); v != "a+b" {
		t.Fatalf("got %#v", v)
	}
	if v := exec(t, lc, `gensym()`); len(v.(string)) != 32 {
		t.Fatalf("got %#v", v)
	}
	// Every minute fires, so the next run is at most a minute
	// out and parses as RFC3339.
	v := exec(t, lc, `cronNext("* * * * *")`)
	if _, err := time.Parse(time.RFC3339Nano, v.(string)); err != nil {
		t.Fatalf("cronNext: %v (%#v)", err, v)
	}
}

func TestExprUndefinedIsNil(t *testing.T) {
	lc := lineContext(t, "x", "x")
	if v := exec(t, lc, `~nothing`); v != nil {
		t.Fatalf("got %#v", v)
	}
}

func TestCompileErrorLowered(t *testing.T) {
	i := NewInterpreter()
	_, err := i.Compile(context.Background(), `$1 eq eq`)
	if err == nil {
		t.Fatal("wanted an error")
	}
	ce, is := err.(*CompileError)
	if !is {
		t.Fatalf("got %T", err)
	}
	if ce.Lowered != `field(0) == ==` {
		t.Fatalf("lowered %q", ce.Lowered)
	}
}

func TestInterrupt(t *testing.T) {
	i := NewInterpreter()
	i.Testing = true
	lc := lineContext(t, "x", "x")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := i.Exec(ctx, lc, `sleep(300); return 1`, nil)
	if err != Interrupted {
		t.Fatalf("got %v", err)
	}
}

func TestWrapSrc(t *testing.T) {
	// A bare expression gets an implicit return.
	if got := wrapSrc("1 + 2"); got != "(function() {\nreturn (1 + 2);\n}());\n" {
		t.Fatalf("got %q", got)
	}
	// Statements run as written.
	if got := wrapSrc("var x = 1; return x"); got != "(function() {\nvar x = 1; return x\n}());\n" {
		t.Fatalf("got %q", got)
	}
}
