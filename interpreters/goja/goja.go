// Package goja implements the default rule interpreter using Goja, a
// Go implementation of ECMAScript 5.1+.
//
// Rule sources are first lowered by package lang (field references,
// stash references, word operators) and the result is compiled as an
// ECMAScript program.  Execution happens in a fresh runtime per call
// with the line context exposed as globals.
//
// See https://github.com/dop251/goja.
package goja

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ruleline/ruleline/core"
	"github.com/ruleline/ruleline/lang"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by Exec if the execution is
	// interrupted (usually by context cancellation).
	Interrupted = errors.New(InterruptedMessage)
)

// init installs this interpreter as the default "expr" evaluator.
func init() {
	core.DefaultInterpreters[core.DefaultInterpreterName] = NewInterpreter()
}

// Interpreter implements core.Interpreter using Goja.
type Interpreter struct {
	// Testing exposes some runtime capabilities (sleep) that
	// production rules shouldn't have.
	Testing bool
}

// NewInterpreter makes a new Interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// CompileError carries the lowered source alongside Goja's
// diagnostic, so rule-compile errors can show what the host evaluator
// actually saw.
type CompileError struct {
	Code    string
	Lowered string
	Msg     string
}

func (e *CompileError) Error() string {
	return e.Msg + ": " + e.Lowered
}

// LoweredSource is picked up by core when it wraps this error into a
// RuleCompileError.
func (e *CompileError) LoweredSource() string {
	return e.Lowered
}

type program struct {
	lowered string
	prog    *goja.Program
}

var returnWord = regexp.MustCompile(`\breturn\b`)

// wrapSrc turns a rule source into a runnable program body.  A bare
// expression gets an implicit return; anything that already returns
// (or is a statement sequence) runs as written and yields whatever it
// returns, possibly nothing.  An all-whitespace source yields nothing.
func wrapSrc(src string) string {
	if strings.TrimSpace(src) == "" {
		return "(function() {\n}());\n"
	}
	if !returnWord.MatchString(src) && !strings.ContainsAny(src, ";\n") {
		return fmt.Sprintf("(function() {\nreturn (%s);\n}());\n", src)
	}
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

// MinNF implements core.FieldAnalyzer via the lowering pass.
func (i *Interpreter) MinNF(code string) (int, error) {
	return lang.MinNF(code)
}

// Compile lowers the rule surface and compiles the result.
func (i *Interpreter) Compile(ctx context.Context, code string) (interface{}, error) {
	lowered, _, err := lang.Lower(code)
	if err != nil {
		return nil, &CompileError{Code: code, Msg: err.Error()}
	}

	wrapped := wrapSrc(lowered)
	obj, err := goja.Compile("", wrapped, true)
	if err != nil {
		return nil, &CompileError{Code: code, Lowered: lowered, Msg: err.Error()}
	}

	return &program{lowered: lowered, prog: obj}, nil
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

// alphabet is used by gensym.
var alphabet = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

func gensym(n int) string {
	bs := make([]byte, n)
	for i := 0; i < len(bs); i++ {
		bs[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(bs)
}

// Exec implements the core.Interpreter method of the same name.
//
// The following globals are available to rule code (mostly via the
// lowering in package lang rather than spelled directly):
//
//	line, NR, NF, indent: the current logical line and its stats.
//	fields: the fields array (shared with later rules on this line).
//	field(i), fieldRange(i,j), joinRange(i,j,sep?): positional access.
//	findField(f), findFieldIndex(f), spliceFields(at,len,repl...).
//	stash: the stash object; assignment and delete write through.
//	prestash(name), prestashSet(name, v): the persistent tier.
//	parser: abort_reading(), push_records(...), last_record(),
//	  pop_record(), forget(...), lines_parsed().
//
// Utilities: substr, upper, lower, trim, gensym(), esc(s),
// cronNext(expr).  The Testing flag must be set to see sleep(ms).
func (i *Interpreter) Exec(ctx context.Context, lc *core.LineContext, code string, compiled interface{}) (interface{}, error) {
	if compiled == nil {
		var err error
		if compiled, err = i.Compile(ctx, code); err != nil {
			return nil, err
		}
	}
	p, is := compiled.(*program)
	if !is {
		return nil, fmt.Errorf("goja bad compilation: %T %#v", compiled, compiled)
	}

	o := goja.New()

	o.Set("line", lc.Line)
	o.Set("NR", lc.NR)
	o.Set("NF", lc.NF())
	o.Set("indent", lc.Indent)
	o.Set("fields", lc.Fields)

	o.Set("field", func(idx int) string {
		v, err := lc.Field(idx)
		if err != nil {
			protest(o, err.Error())
		}
		return v
	})
	o.Set("fieldRange", func(i, j int) []string {
		vs, err := lc.FieldRange(i, j)
		if err != nil {
			protest(o, err.Error())
		}
		return vs
	})
	o.Set("joinRange", func(i, j int, sep ...string) string {
		v, err := lc.JoinRange(i, j, sep...)
		if err != nil {
			protest(o, err.Error())
		}
		return v
	})
	o.Set("findField", func(pred goja.Value) interface{} {
		f, ok := goja.AssertFunction(pred)
		if !ok {
			protest(o, "findField wants a function")
		}
		v, found := lc.FindField(func(s string) bool {
			r, err := f(goja.Undefined(), o.ToValue(s))
			if err != nil {
				panic(err)
			}
			return r.ToBoolean()
		})
		if !found {
			return nil
		}
		return v
	})
	o.Set("findFieldIndex", func(pred goja.Value) int {
		f, ok := goja.AssertFunction(pred)
		if !ok {
			protest(o, "findFieldIndex wants a function")
		}
		return lc.FindFieldIndex(func(s string) bool {
			r, err := f(goja.Undefined(), o.ToValue(s))
			if err != nil {
				panic(err)
			}
			return r.ToBoolean()
		})
	})
	o.Set("spliceFields", func(at, length int, repl ...string) []string {
		removed, err := lc.SpliceFields(at, length, repl...)
		if err != nil {
			protest(o, err.Error())
		}
		return removed
	})

	// The stash is handed in as a plain Go map, so property writes
	// and deletes in rule code mutate it directly.  The diff
	// against the before-image becomes transient stash updates.
	var before, view map[string]interface{}
	if lc.Parser != nil {
		before = lc.Parser.StashView()
		view = lc.Parser.StashView()
	} else {
		before = map[string]interface{}{}
		view = map[string]interface{}{}
	}
	o.Set("stash", view)

	if lc.Parser != nil {
		o.Set("prestash", func(name string) interface{} {
			v, _ := lc.Prestash(name)
			return v
		})
		o.Set("prestashSet", func(name string, v interface{}) {
			lc.Parser.Prestash(name, v)
		})
		o.Set("parser", map[string]interface{}{
			"abort_reading": func() { lc.Parser.AbortReading() },
			"push_records": func(xs ...interface{}) {
				lc.Parser.PushRecords(xs...)
			},
			"last_record":  func() interface{} { return lc.Parser.LastRecord() },
			"pop_record":   func() interface{} { return lc.Parser.PopRecord() },
			"forget":       func(names ...string) { lc.Parser.Forget(names...) },
			"lines_parsed": func() int { return lc.Parser.LinesParsed() },
			"filename":     func() string { return lc.Parser.Filename() },
		})
	}

	o.Set("substr", func(s string, start int, length ...int) string {
		if start < 0 {
			start += len(s)
		}
		if start < 0 || len(s) < start {
			return ""
		}
		end := len(s)
		if 0 < len(length) && start+length[0] < end {
			end = start + length[0]
		}
		return s[start:end]
	})
	o.Set("upper", strings.ToUpper)
	o.Set("lower", strings.ToLower)
	o.Set("trim", strings.TrimSpace)

	o.Set("gensym", func() string { return gensym(32) })
	o.Set("esc", func(s string) string { return url.QueryEscape(s) })
	o.Set("cronNext", func(expr string) string {
		c, err := cronexpr.Parse(expr)
		if err != nil {
			protest(o, err.Error())
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
	})

	if i.Testing {
		o.Set("sleep", func(ms int) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		})
	}

	// We want to make sure that the following goroutine is
	// terminated as soon as possible.
	ictx, cancel := context.WithCancel(ctx)
	go func() {
		<-ictx.Done()
		// If Exec calls cancel() after RunProgram returns, we
		// weren't actually interrupted, and nobody will see
		// this message.  That's the behavior we want.
		o.Interrupt(InterruptedMessage)
	}()

	v, err := o.RunProgram(p.prog)
	cancel()

	if lc.Parser != nil {
		lc.Parser.SyncStash(before, view)
	}

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, Interrupted
		}
		return nil, err
	}

	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}
