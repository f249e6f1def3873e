// Package awk implements a rule interpreter that runs genuine AWK
// programs via benhoyt/goawk.  Each logical line is fed to the
// program as its whole input, and whatever the program prints is the
// result: the record for an action, truth (non-empty output) for a
// predicate.
//
// This is the escape hatch for rules that outgrow the built-in
// mini-language: pattern ranges, printf formatting, AWK's associative
// arrays.  The stash and parser back-reference are not reachable from
// AWK code; use the default interpreter when a rule needs them.
package awk

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/ruleline/ruleline/core"

	"github.com/benhoyt/goawk/interp"
	"github.com/benhoyt/goawk/parser"
)

func init() {
	core.DefaultInterpreters["awk"] = NewInterpreter()
}

type Interpreter struct{}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Compile parses the AWK program once; Exec reuses it.
func (i *Interpreter) Compile(ctx context.Context, code string) (interface{}, error) {
	prog, err := parser.ParseProgram([]byte(code), nil)
	if err != nil {
		return nil, err
	}
	return prog, nil
}

// Exec runs the program with the logical line on stdin.  The trimmed
// output is the result; no output means nil.
func (i *Interpreter) Exec(ctx context.Context, lc *core.LineContext, code string, compiled interface{}) (interface{}, error) {
	if compiled == nil {
		var err error
		if compiled, err = i.Compile(ctx, code); err != nil {
			return nil, err
		}
	}
	prog, is := compiled.(*parser.Program)
	if !is {
		return nil, fmt.Errorf("awk bad compilation: %T", compiled)
	}

	var out bytes.Buffer
	config := &interp.Config{
		Stdin:  strings.NewReader(lc.Line + "\n"),
		Output: &out,
		Error:  ioutil.Discard,
	}
	if _, err := interp.ExecProgram(prog, config); err != nil {
		return nil, err
	}

	s := strings.TrimRight(out.String(), "\n")
	if s == "" {
		return nil, nil
	}
	return s, nil
}
