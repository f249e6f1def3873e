package core

import (
	"fmt"
	"strings"
)

// LineContext is what a rule sees: one logical line, its fields (when
// auto-split is on), and a back-reference to the parser for stash,
// record, and abort operations.
//
// A LineContext is built just before rule dispatch for a line and
// torn down right after.  Fields mutated by SpliceFields stay visible
// to later rules on the same line.
type LineContext struct {
	// Line is the full logical line after unwrapping, chomping,
	// and trimming.
	Line string

	// Fields is the split form of Line.  nil when auto-split is
	// off.
	Fields []string

	// NR is the number of physical lines read when this logical
	// line was dispatched.  For join_last styles a logical line is
	// dispatched only once the next unwrapped physical line (or the
	// end of input) arrives, so that line is counted too.
	NR int

	// Indent counts leading occurrences of the parser's
	// indentation string.  Zero unless indentation tracking is
	// on.
	Indent int

	// Parser is a non-owning back-reference for the duration of
	// dispatch on this line.
	Parser *Parser
}

// FieldIndexOutOfRange occurs for a field reference a line can't
// satisfy.
type FieldIndexOutOfRange struct {
	Index int
	NF    int
}

func (e *FieldIndexOutOfRange) Error() string {
	return fmt.Sprintf("field index %d out of range (NF=%d)", e.Index, e.NF)
}

// NF is the number of fields, 0 when auto-split is off.
func (lc *LineContext) NF() int {
	return len(lc.Fields)
}

// resolve maps a possibly negative index onto the fields slice.
func (lc *LineContext) resolve(i int) (int, error) {
	nf := lc.NF()
	j := i
	if j < 0 {
		j += nf
	}
	if j < 0 || nf <= j {
		return 0, &FieldIndexOutOfRange{Index: i, NF: nf}
	}
	return j, nil
}

// Field returns field i: non-negative indexes count from the start,
// negative indexes from the end (-1 is the last field).
func (lc *LineContext) Field(i int) (string, error) {
	j, err := lc.resolve(i)
	if err != nil {
		return "", err
	}
	return lc.Fields[j], nil
}

// FieldRange returns the inclusive range of fields from i to j.  If i
// resolves past j, the range comes back reversed.
func (lc *LineContext) FieldRange(i, j int) ([]string, error) {
	a, err := lc.resolve(i)
	if err != nil {
		return nil, err
	}
	b, err := lc.resolve(j)
	if err != nil {
		return nil, err
	}
	if b < a {
		acc := make([]string, 0, a-b+1)
		for k := a; b <= k; k-- {
			acc = append(acc, lc.Fields[k])
		}
		return acc, nil
	}
	acc := make([]string, 0, b-a+1)
	for k := a; k <= b; k++ {
		acc = append(acc, lc.Fields[k])
	}
	return acc, nil
}

// JoinRange joins FieldRange(i, j) with the given separator, which
// defaults to the parser's output field separator (" " unless
// configured otherwise).
func (lc *LineContext) JoinRange(i, j int, sep ...string) (string, error) {
	fs, err := lc.FieldRange(i, j)
	if err != nil {
		return "", err
	}
	s := lc.Parser.ofs
	if 0 < len(sep) {
		s = sep[0]
	}
	return strings.Join(fs, s), nil
}

// FindField returns the first field satisfying pred.
func (lc *LineContext) FindField(pred func(string) bool) (string, bool) {
	for _, f := range lc.Fields {
		if pred(f) {
			return f, true
		}
	}
	return "", false
}

// FindFieldIndex returns the index of the first field satisfying
// pred, or -1.
func (lc *LineContext) FindFieldIndex(pred func(string) bool) int {
	for i, f := range lc.Fields {
		if pred(f) {
			return i
		}
	}
	return -1
}

// SpliceFields removes length fields starting at offset (negative
// offsets count from the end), inserts the replacement there, and
// returns the removed fields.  The mutation is visible to rules that
// run later on the same line.
func (lc *LineContext) SpliceFields(offset, length int, replacement ...string) ([]string, error) {
	nf := lc.NF()
	at := offset
	if at < 0 {
		at += nf
	}
	if at < 0 || nf < at {
		return nil, &FieldIndexOutOfRange{Index: offset, NF: nf}
	}
	if length < 0 {
		length = 0
	}
	if nf < at+length {
		length = nf - at
	}

	removed := make([]string, length)
	copy(removed, lc.Fields[at:at+length])

	rest := make([]string, 0, nf-length+len(replacement))
	rest = append(rest, lc.Fields[:at]...)
	rest = append(rest, replacement...)
	rest = append(rest, lc.Fields[at+length:]...)
	lc.Fields = rest

	return removed, nil
}

// Stash reads a name from the unified stash view.
func (lc *LineContext) Stash(name string) (interface{}, bool) {
	return lc.Parser.Stashed(name)
}

// SetStash writes a transient stash entry.
func (lc *LineContext) SetStash(name string, v interface{}) {
	lc.Parser.SetStashed(name, v)
}

// DeleteStash removes a transient stash entry.  A persistent
// pre-stash entry of the same name survives.
func (lc *LineContext) DeleteStash(name string) {
	lc.Parser.deleteTransient(name)
}

// Prestash reads a persistent stash entry.
func (lc *LineContext) Prestash(name string) (interface{}, bool) {
	return lc.Parser.prestashed(name)
}
