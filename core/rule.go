package core

import (
	"context"
	"strings"
)

// DefaultActionSource is the action used when a rule gives only a
// predicate: the whole logical line becomes the record.
var DefaultActionSource = "$0"

// RuleOpts is what you give AddRule (and the registry's
// AppliesRule).
type RuleOpts struct {
	// Name identifies the rule.  Optional on instance rules,
	// required when registering in a class.
	Name string

	// If is the predicate source.  Empty means always true.
	If string

	// Do is the action source.  Empty means "return the whole
	// line"; a non-empty source that is all whitespace means the
	// rule has an action that does nothing (and records nothing).
	Do string

	// Doc describes the rule in Markdown.  See package tools.
	Doc string

	// Interpreter names the evaluator for If, Do, and
	// Preconditions.  Empty means DefaultInterpreterName.
	Interpreter string

	// DontRecord keeps the action's return value out of the
	// record list.
	DontRecord bool

	// ContinueToNext lets dispatch move on to the next rule after
	// this one fires.  Requires DontRecord.
	ContinueToNext bool

	// Preconditions are extra predicate sources ANDed before If.
	Preconditions []string

	// Before and After anchor insertion when registering in a
	// class.  At most one may be set, and the anchor must be a
	// qualified rule name inherited from a superclass.
	Before string
	After  string

	// Interpreters overrides DefaultInterpreters.  Mostly for
	// tests.
	Interpreters map[string]Interpreter
}

type code struct {
	src      string
	compiled interface{}
}

// Rule pairs a compiled predicate with a compiled action.
type Rule struct {
	Name string

	// Doc is carried for documentation tooling; the engine
	// ignores it.
	Doc string

	in       Interpreter
	inName   string
	pred     *code // nil: always true
	action   *code // always set; a missing Do compiles DefaultActionSource
	preconds []*code

	minNF          int
	dontRecord     bool
	continueToNext bool
}

// NewRule compiles a rule from its options.
//
// A rule with neither predicate nor action is rejected, as is
// ContinueToNext without DontRecord.  Compilation failures come back
// as *RuleCompileError carrying the original and lowered sources.
func NewRule(ctx context.Context, opts RuleOpts) (*Rule, error) {
	if opts.If == "" && opts.Do == "" {
		return nil, RuleShape
	}
	if opts.ContinueToNext && !opts.DontRecord {
		return nil, IllegalRuleCont
	}

	in, err := findInterpreter(opts.Interpreter, opts.Interpreters)
	if err != nil {
		return nil, err
	}

	r := &Rule{
		Name:           opts.Name,
		Doc:            opts.Doc,
		in:             in,
		inName:         opts.Interpreter,
		dontRecord:     opts.DontRecord,
		continueToNext: opts.ContinueToNext,
	}

	if opts.If != "" {
		if r.pred, err = r.compile(ctx, opts.If); err != nil {
			return nil, err
		}
	}

	do := opts.Do
	if do == "" {
		do = DefaultActionSource
	}
	if r.action, err = r.compile(ctx, do); err != nil {
		return nil, err
	}

	for _, p := range opts.Preconditions {
		if err := r.AddPrecondition(ctx, p); err != nil {
			return nil, err
		}
	}

	r.recomputeMinNF()

	return r, nil
}

func (r *Rule) compile(ctx context.Context, src string) (*code, error) {
	compiled, err := r.in.Compile(ctx, src)
	if err != nil {
		ce := &RuleCompileError{
			Code: src,
			Msg:  err.Error(),
		}
		// Interpreters that lower the source first report the
		// lowered form alongside their diagnostic.
		if le, is := err.(interface{ LoweredSource() string }); is {
			ce.Subroutine = le.LoweredSource()
		}
		return nil, ce
	}
	return &code{src: src, compiled: compiled}, nil
}

func (r *Rule) recomputeMinNF() {
	fa, is := r.in.(FieldAnalyzer)
	if !is {
		r.minNF = 0
		return
	}
	max := 0
	consider := func(c *code) {
		if c == nil {
			return
		}
		// Compile already succeeded, so analysis can't fail.
		nf, _ := fa.MinNF(c.src)
		if max < nf {
			max = nf
		}
	}
	consider(r.pred)
	consider(r.action)
	for _, p := range r.preconds {
		consider(p)
	}
	r.minNF = max
}

// PredicateSource returns the rule's predicate as the user wrote it
// ("" if the rule has none).
func (r *Rule) PredicateSource() string {
	if r.pred == nil {
		return ""
	}
	return r.pred.src
}

// ActionSource returns the rule's action source.
func (r *Rule) ActionSource() string {
	if r.action == nil {
		return ""
	}
	return r.action.src
}

// MinNF is the minimum field count a line needs before this rule is
// even tested.
func (r *Rule) MinNF() int { return r.minNF }

// DontRecord reports whether the action's return value is kept out of
// the record list.
func (r *Rule) DontRecord() bool { return r.dontRecord }

// ContinueToNext reports whether dispatch continues past this rule
// after it fires.
func (r *Rule) ContinueToNext() bool { return r.continueToNext }

// Test decides whether the rule applies to the line.  False when
// auto-split is off or the line has fewer than MinNF fields.
// Preconditions run first, in order, short-circuiting.
func (r *Rule) Test(ctx context.Context, lc *LineContext) (bool, error) {
	if lc == nil || lc.Fields == nil {
		return false, nil
	}
	if lc.NF() < r.minNF {
		return false, nil
	}
	for _, p := range r.preconds {
		v, err := r.in.Exec(ctx, lc, p.src, p.compiled)
		if err != nil {
			return false, err
		}
		if !Truthy(v) {
			return false, nil
		}
	}
	if r.pred == nil {
		return true, nil
	}
	v, err := r.in.Exec(ctx, lc, r.pred.src, r.pred.compiled)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// Run executes the rule's action.  The second result reports whether
// the first should be pushed as a record; a nil record is legal and
// means a literal "no data".
func (r *Rule) Run(ctx context.Context, lc *LineContext) (interface{}, bool, error) {
	if lc == nil {
		return nil, false, RuleRunImproperly
	}
	if r.action == nil || strings.TrimSpace(r.action.src) == "" {
		return nil, false, nil
	}
	v, err := r.in.Exec(ctx, lc, r.action.src, r.action.compiled)
	if err != nil {
		return nil, false, err
	}
	return v, !r.dontRecord, nil
}

// AddPrecondition compiles another predicate to AND in before the
// rule's own, and folds its field references into MinNF.
func (r *Rule) AddPrecondition(ctx context.Context, src string) error {
	c, err := r.compile(ctx, src)
	if err != nil {
		return err
	}
	r.preconds = append(r.preconds, c)
	r.recomputeMinNF()
	return nil
}

// Clone copies the rule, compiled forms included.  Used by the
// registry's rule cloning.
func (r *Rule) Clone() *Rule {
	preconds := make([]*code, len(r.preconds))
	copy(preconds, r.preconds)
	clone := *r
	clone.preconds = preconds
	return &clone
}

// SetPredicate replaces the rule's predicate.
func (r *Rule) SetPredicate(ctx context.Context, src string) error {
	if src == "" {
		r.pred = nil
		r.recomputeMinNF()
		return nil
	}
	c, err := r.compile(ctx, src)
	if err != nil {
		return err
	}
	r.pred = c
	r.recomputeMinNF()
	return nil
}

// SetAction replaces the rule's action.
func (r *Rule) SetAction(ctx context.Context, src string) error {
	if src == "" {
		src = DefaultActionSource
	}
	c, err := r.compile(ctx, src)
	if err != nil {
		return err
	}
	r.action = c
	r.recomputeMinNF()
	return nil
}

// AppendAction recompiles the action with more source at the end.
func (r *Rule) AppendAction(ctx context.Context, src string) error {
	return r.SetAction(ctx, r.ActionSource()+"\n"+src)
}

// PrependAction recompiles the action with more source at the start.
func (r *Rule) PrependAction(ctx context.Context, src string) error {
	return r.SetAction(ctx, src+"\n"+r.ActionSource())
}

// SetDontRecord flips recording.  Turning recording back on while
// ContinueToNext is set is rejected.
func (r *Rule) SetDontRecord(dont bool) error {
	if !dont && r.continueToNext {
		return IllegalRuleCont
	}
	r.dontRecord = dont
	return nil
}

// SetContinueToNext requires DontRecord.
func (r *Rule) SetContinueToNext(cont bool) error {
	if cont && !r.dontRecord {
		return IllegalRuleCont
	}
	r.continueToNext = cont
	return nil
}
