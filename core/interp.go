package core

import (
	"context"
	"errors"
)

var (
	// InterpreterNotFound occurs when a rule names an interpreter
	// that isn't in the given map of interpreters.
	InterpreterNotFound = errors.New("interpreter not found")

	// DefaultInterpreters will be used when compiling a rule whose
	// options don't provide interpreters explicitly.  Interpreter
	// packages register themselves here from their init()s, so a
	// program picks its evaluators by importing them.
	DefaultInterpreters = make(map[string]Interpreter)

	// DefaultInterpreterName is the interpreter used by rules that
	// don't name one.  The expr interpreter lowers the AWK-like
	// rule surface to ECMAScript and runs it under goja.
	DefaultInterpreterName = "expr"
)

// Interpreter can compile and execute rule predicate and action
// sources.
type Interpreter interface {
	// Compile can make something that helps when Exec()ing the
	// code later.
	Compile(ctx context.Context, code string) (interface{}, error)

	// Exec evaluates the code against a line context.  The result
	// of a previous Compile() might be provided.
	//
	// A predicate result is judged by Truthy(); an action result
	// is the candidate record.  A nil result is legal either way.
	Exec(ctx context.Context, lc *LineContext, code string, compiled interface{}) (interface{}, error)
}

// FieldAnalyzer is optionally implemented by interpreters whose
// source language has positional field references.  MinNF reports the
// minimum field count a line needs for the code's references to
// resolve; rules are skipped below it.
type FieldAnalyzer interface {
	MinNF(code string) (int, error)
}

// Truthy maps an interpreter result onto predicate truth: only nil
// (no result) and false fail.  A predicate that wants host-language
// truthiness for "" or 0 can spell the boolean itself.
func Truthy(x interface{}) bool {
	switch vv := x.(type) {
	case nil:
		return false
	case bool:
		return vv
	default:
		return true
	}
}

func findInterpreter(name string, interpreters map[string]Interpreter) (Interpreter, error) {
	if interpreters == nil {
		interpreters = DefaultInterpreters
	}
	if name == "" {
		name = DefaultInterpreterName
	}
	in, have := interpreters[name]
	if !have {
		return nil, InterpreterNotFound
	}
	return in, nil
}
