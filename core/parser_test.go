package core

import (
	"context"
	"errors"
	"io"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// fakeInterp is a tiny command-style interpreter so engine tests
// don't need a real evaluator.  Codes:
//
//	true, false: predicate constants
//	minN: predicate true, but requiring NF >= N
//	$0, line: the logical line
//	first: the first field
//	indent: the line's indent
//	abort: abort the read, result is the line
//	set NAME V, get NAME: transient stash
//	err: an execution error
//	boom: fails to compile
type fakeInterp struct{}

func (fakeInterp) Compile(ctx context.Context, code string) (interface{}, error) {
	if code == "boom" {
		return nil, errors.New("no good")
	}
	return code, nil
}

func (fakeInterp) MinNF(code string) (int, error) {
	if strings.HasPrefix(code, "min") {
		return strconv.Atoi(strings.TrimPrefix(code, "min"))
	}
	return 0, nil
}

func (fakeInterp) Exec(ctx context.Context, lc *LineContext, code string, compiled interface{}) (interface{}, error) {
	switch {
	case code == "true" || strings.HasPrefix(code, "min"):
		return true, nil
	case code == "false":
		return false, nil
	case code == "$0" || code == "line":
		return lc.Line, nil
	case code == "first":
		return lc.Fields[0], nil
	case code == "indent":
		return lc.Indent, nil
	case code == "abort":
		lc.Parser.AbortReading()
		return lc.Line, nil
	case strings.HasPrefix(code, "set "):
		parts := strings.SplitN(strings.TrimPrefix(code, "set "), " ", 2)
		lc.Parser.SetStashed(parts[0], parts[1])
		return nil, nil
	case strings.HasPrefix(code, "get "):
		v, _ := lc.Parser.Stashed(strings.TrimPrefix(code, "get "))
		return v, nil
	case code == "err":
		return nil, errors.New("exec failed")
	default:
		return code, nil
	}
}

var fakes = map[string]Interpreter{DefaultInterpreterName: fakeInterp{}}

func fakeRule(t *testing.T, opts RuleOpts) RuleOpts {
	t.Helper()
	opts.Interpreters = fakes
	return opts
}

func newTestParser(t *testing.T, s *Settings) *Parser {
	t.Helper()
	if s == nil {
		s = &Settings{AutoChomp: true}
	}
	s.Interpreters = fakes
	p, err := NewParser(s)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadRecordsDefaultAction(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)

	// A rule with just a predicate records the whole line.
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true"})); err != nil {
		t.Fatal(err)
	}

	if err := p.ReadString(ctx, "a b\nc d\n"); err != nil {
		t.Fatal(err)
	}

	rs := p.Records()
	if len(rs) != 2 || rs[0] != "a b" || rs[1] != "c d" {
		t.Fatalf("records %#v", rs)
	}
	if p.LinesParsed() != 2 {
		t.Fatalf("lines parsed %d", p.LinesParsed())
	}
}

func TestRuleShape(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{})); err != RuleShape {
		t.Fatalf("got %v", err)
	}
}

func TestIllegalRuleCont(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true", ContinueToNext: true}))
	if err != IllegalRuleCont {
		t.Fatalf("got %v", err)
	}
}

func TestRuleCompileError(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "boom"}))
	ce, is := err.(*RuleCompileError)
	if !is {
		t.Fatalf("got %T: %v", err, err)
	}
	if ce.Code != "boom" {
		t.Fatalf("code %q", ce.Code)
	}
}

func TestMinNFSkipsRules(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "min3"})); err != nil {
		t.Fatal(err)
	}

	if err := p.ReadString(ctx, "one two\none two three\n"); err != nil {
		t.Fatal(err)
	}
	rs := p.Records()
	if len(rs) != 1 || rs[0] != "one two three" {
		t.Fatalf("records %#v", rs)
	}
}

func TestTestRequiresAutoSplit(t *testing.T) {
	ctx := context.Background()
	r, err := NewRule(ctx, fakeRule(t, RuleOpts{If: "true"}))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := r.Test(ctx, &LineContext{Line: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("rule fired without fields")
	}
}

func TestRunWithoutContext(t *testing.T) {
	ctx := context.Background()
	r, err := NewRule(ctx, fakeRule(t, RuleOpts{If: "true"}))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Run(ctx, nil); err != RuleRunImproperly {
		t.Fatalf("got %v", err)
	}
}

func TestContinueToNext(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)

	// First rule counts (without recording) and lets dispatch
	// continue; the second records.
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{
		If: "true", Do: "set seen yes", DontRecord: true, ContinueToNext: true,
	})); err != nil {
		t.Fatal(err)
	}
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true", Do: "get seen"})); err != nil {
		t.Fatal(err)
	}

	if err := p.ReadString(ctx, "x\n"); err != nil {
		t.Fatal(err)
	}
	rs := p.Records()
	if len(rs) != 1 || rs[0] != "yes" {
		t.Fatalf("records %#v", rs)
	}
}

func TestFirstMatchStopsDispatch(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true", Do: "first"})); err != nil {
		t.Fatal(err)
	}
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true", Do: "line"})); err != nil {
		t.Fatal(err)
	}

	if err := p.ReadString(ctx, "a b\n"); err != nil {
		t.Fatal(err)
	}
	rs := p.Records()
	if len(rs) != 1 || rs[0] != "a" {
		t.Fatalf("records %#v", rs)
	}
}

func TestAbortReading(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true", Do: "abort"})); err != nil {
		t.Fatal(err)
	}
	if err := p.EndRule(ctx, RuleOpts{Do: "get nothing"}); err != nil {
		t.Fatal(err)
	}

	if err := p.ReadString(ctx, "a\nb\nc\n"); err != nil {
		t.Fatal(err)
	}
	if !p.Aborted() {
		t.Fatal("not aborted")
	}
	// One record from the aborting line, one from END (which runs
	// regardless of abort).
	rs := p.Records()
	if len(rs) != 2 || rs[0] != "a" {
		t.Fatalf("records %#v", rs)
	}
	if p.LinesParsed() != 1 {
		t.Fatalf("lines parsed %d", p.LinesParsed())
	}
}

func TestBeginAndEnd(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	if err := p.BeginRule(ctx, RuleOpts{Do: "set c zero"}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true", Do: "get c"})); err != nil {
		t.Fatal(err)
	}
	if err := p.EndRule(ctx, RuleOpts{Do: "get c"}); err != nil {
		t.Fatal(err)
	}

	if err := p.ReadString(ctx, "x\n"); err != nil {
		t.Fatal(err)
	}
	rs := p.Records()
	if len(rs) != 2 || rs[0] != "zero" || rs[1] != "zero" {
		t.Fatalf("records %#v", rs)
	}
}

func TestBeginRuleConcatenates(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	if err := p.BeginRule(ctx, RuleOpts{Do: "set a 1"}); err != nil {
		t.Fatal(err)
	}
	if err := p.BeginRule(ctx, RuleOpts{Do: "set b 2"}); err != nil {
		t.Fatal(err)
	}
	if p.beginSrc != "set a 1\nset b 2" {
		t.Fatalf("begin source %q", p.beginSrc)
	}
}

func TestReadResetsState(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true"})); err != nil {
		t.Fatal(err)
	}

	if err := p.ReadString(ctx, "a\nb\n"); err != nil {
		t.Fatal(err)
	}
	if len(p.Records()) != 2 {
		t.Fatalf("records %#v", p.Records())
	}

	if err := p.ReadString(ctx, "c\n"); err != nil {
		t.Fatal(err)
	}
	if len(p.Records()) != 1 {
		t.Fatalf("records not reset: %#v", p.Records())
	}
	if p.LinesParsed() != 1 {
		t.Fatalf("lines parsed %d", p.LinesParsed())
	}
}

func TestStashTiers(t *testing.T) {
	p := newTestParser(t, nil)

	p.Prestash("keep", "forever")
	p.SetStashed("tmp", "now")

	if v, _ := p.Stashed("keep"); v != "forever" {
		t.Fatalf("keep = %v", v)
	}

	// The transient tier shadows the persistent one.
	p.SetStashed("keep", "shadow")
	if v, _ := p.Stashed("keep"); v != "shadow" {
		t.Fatalf("keep = %v", v)
	}

	// A transient delete reveals the persistent copy again.
	p.deleteTransient("keep")
	if v, _ := p.Stashed("keep"); v != "forever" {
		t.Fatalf("keep = %v", v)
	}

	p.Forget("keep")
	if p.HasStashed("keep") {
		t.Fatal("keep survived Forget")
	}
	if !p.HasStashed("tmp") {
		t.Fatal("tmp went missing")
	}

	p.Forget()
	if !p.HasEmptyStash() {
		t.Fatal("stash not empty")
	}
}

func TestStashClearedAcrossReads(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	p.Prestash("pre", "stays")
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{
		If: "true", Do: "set tmp gone", DontRecord: true,
	})); err != nil {
		t.Fatal(err)
	}

	if err := p.ReadString(ctx, "x\n"); err != nil {
		t.Fatal(err)
	}

	if p.HasStashed("tmp") {
		t.Fatal("transient stash survived the read")
	}
	if v, _ := p.Stashed("pre"); v != "stays" {
		t.Fatalf("pre = %v", v)
	}
}

func TestRuleErrorPropagates(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true", Do: "err"})); err != nil {
		t.Fatal(err)
	}

	err := p.ReadString(ctx, "x\n")
	if err == nil || err.Error() != "exec failed" {
		t.Fatalf("got %v", err)
	}
	// Errors are not aborts.
	if p.Aborted() {
		t.Fatal("error set the aborted flag")
	}
}

func TestReadWithoutSource(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	p.PushRecords("sentinel")

	if err := p.Read(ctx); err != nil {
		t.Fatal(err)
	}
	// No source: no mutation.
	if len(p.Records()) != 1 {
		t.Fatalf("records %#v", p.Records())
	}
}

func TestFilenameAndFilehandleExclusive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	if err := ioutil.WriteFile(path, []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}

	p := newTestParser(t, nil)
	if err := p.SetFilename(path); err != nil {
		t.Fatal(err)
	}
	p.SetFilehandle(strings.NewReader("x\n"))
	if p.Filename() != "" {
		t.Fatal("filehandle didn't clear filename")
	}
	if err := p.SetFilename(path); err != nil {
		t.Fatal(err)
	}
	if p.fh != nil {
		t.Fatal("filename didn't clear filehandle")
	}
}

func TestSetFilenameMissing(t *testing.T) {
	p := newTestParser(t, nil)
	if err := p.SetFilename(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("wanted an error")
	}
}

func TestReadFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	if err := ioutil.WriteFile(path, []byte("a\nb\n"), 0644); err != nil {
		t.Fatal(err)
	}

	p := newTestParser(t, nil)
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true"})); err != nil {
		t.Fatal(err)
	}
	if err := p.SetFilename(path); err != nil {
		t.Fatal(err)
	}
	if err := p.Read(ctx); err != nil {
		t.Fatal(err)
	}
	if len(p.Records()) != 2 {
		t.Fatalf("records %#v", p.Records())
	}
}

func TestReadBinaryFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "bin")
	if err := ioutil.WriteFile(path, []byte{0, 1, 2, 3, 0, 0, 9}, 0644); err != nil {
		t.Fatal(err)
	}

	p := newTestParser(t, nil)
	if err := p.SetFilename(path); err != nil {
		t.Fatal(err)
	}
	err := p.Read(ctx)
	if _, is := err.(*NotPlainText); !is {
		t.Fatalf("got %T: %v", err, err)
	}
}

func TestCustomLineTrimmer(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, &Settings{
		AutoChomp:         true,
		CustomLineTrimmer: func(s string) string { return strings.TrimPrefix(s, ">") },
	})
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true"})); err != nil {
		t.Fatal(err)
	}

	if err := p.ReadString(ctx, ">quoted\n"); err != nil {
		t.Fatal(err)
	}
	rs := p.Records()
	if len(rs) != 1 || rs[0] != "quoted" {
		t.Fatalf("records %#v", rs)
	}
}

func TestTrackIndentation(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, &Settings{
		AutoChomp:        true,
		AutoTrim:         TrimLeft,
		TrackIndentation: true,
	})
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true", Do: "indent"})); err != nil {
		t.Fatal(err)
	}

	if err := p.ReadString(ctx, "none\n  two\n"); err != nil {
		t.Fatal(err)
	}
	rs := p.Records()
	if len(rs) != 2 || rs[0] != 0 || rs[1] != 2 {
		t.Fatalf("records %#v", rs)
	}
}

func TestPrefilterSkipsDispatch(t *testing.T) {
	ctx := context.Background()
	p := newTestParser(t, nil)
	if err := p.AddRule(ctx, fakeRule(t, RuleOpts{If: "true"})); err != nil {
		t.Fatal(err)
	}
	p.SetPrefilter(keepFunc(func(line string) bool {
		return strings.Contains(line, "E")
	}))

	if err := p.ReadString(ctx, "aE\nbb\ncE\n"); err != nil {
		t.Fatal(err)
	}
	rs := p.Records()
	if len(rs) != 2 || rs[0] != "aE" || rs[1] != "cE" {
		t.Fatalf("records %#v", rs)
	}
}

type keepFunc func(string) bool

func (f keepFunc) Keep(line string) bool { return f(line) }

func TestPopAndPushRecords(t *testing.T) {
	p := newTestParser(t, nil)
	p.PushRecords("a", nil, "c")

	if p.LastRecord() != "c" {
		t.Fatalf("last %v", p.LastRecord())
	}
	if p.PopRecord() != "c" {
		t.Fatal("pop")
	}
	// nil is a legal record.
	if v := p.PopRecord(); v != nil {
		t.Fatalf("pop %v", v)
	}
	if len(p.Records()) != 1 {
		t.Fatalf("records %#v", p.Records())
	}
}

func TestReaderSourceKeepsTerminators(t *testing.T) {
	s := NewReaderSource(strings.NewReader("a\nb"))
	l1, err := s.Next()
	if err != nil || l1 != "a\n" {
		t.Fatalf("%q %v", l1, err)
	}
	// The last, unterminated line still arrives.
	l2, err := s.Next()
	if err != nil || l2 != "b" {
		t.Fatalf("%q %v", l2, err)
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("got %v", err)
	}
}
