// Package noop implements a trivial rule interpreter: the action
// source is the result.  Handy when a rule should record a literal,
// and for tests that don't want a real evaluator in the way.
package noop

import (
	"context"

	"github.com/ruleline/ruleline/core"
)

func init() {
	core.DefaultInterpreters["noop"] = NewInterpreter()
}

type Interpreter struct{}

func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Compile does nothing, successfully.
func (i *Interpreter) Compile(ctx context.Context, code string) (interface{}, error) {
	return code, nil
}

// Exec returns the source verbatim.  As a predicate that makes any
// non-empty source truthy, so a noop rule with a predicate always
// fires.
func (i *Interpreter) Exec(ctx context.Context, lc *core.LineContext, code string, compiled interface{}) (interface{}, error) {
	return code, nil
}
