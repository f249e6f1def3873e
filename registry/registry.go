// Package registry holds per-class rule sets.
//
// A class is a named, ordered list of compiled rules, optionally
// inheriting the rules of superclasses.  Rule names are qualified as
// "Class/rule" and are unique process-wide within their class's
// order.  Classes are meant to be populated at program start (the
// moral equivalent of subclass definition time) and treated as
// immutable while parsers built from them are reading.
package registry

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/ruleline/ruleline/core"
)

var (
	mu      sync.Mutex
	classes = make(map[string]*Class)
)

// Class is one registered rule class.
type Class struct {
	name   string
	supers []*Class

	// order lists qualified rule names; rules maps them to their
	// compiled form.  Both include inherited entries.
	order []string
	rules map[string]*core.Rule

	autoSplit bool
	wrapStyle core.WrapStyle
	mtype     core.MultilineType
	isWrapped func(string) bool
	join      func(last, cur string) string
}

// Define registers a new class.  Its rule order is seeded by
// concatenating the superclasses' orders in declaration order.
//
// The name "main" is reserved: rule classes belong to packages, not
// to whatever happens to be the top-level namespace.
func Define(name string, supers ...*Class) (*Class, error) {
	if name == "" || name == "main" {
		return nil, MainNamespace
	}

	mu.Lock()
	defer mu.Unlock()

	if _, have := classes[name]; have {
		return nil, &DuplicateClass{Name: name}
	}

	c := &Class{
		name:  name,
		rules: make(map[string]*core.Rule),
	}
	for _, s := range supers {
		c.supers = append(c.supers, s)
		for _, q := range s.order {
			c.order = append(c.order, q)
			c.rules[q] = s.rules[q]
		}
		if s.autoSplit {
			c.autoSplit = true
		}
		if s.wrapStyle != "" {
			c.wrapStyle = s.wrapStyle
			c.mtype = s.mtype
			c.isWrapped = s.isWrapped
			c.join = s.join
		}
	}

	classes[name] = c
	return c, nil
}

// Lookup finds a registered class.
func Lookup(name string) (*Class, bool) {
	mu.Lock()
	defer mu.Unlock()
	c, have := classes[name]
	return c, have
}

// Drop removes a class registration.  For tests.
func Drop(name string) {
	mu.Lock()
	defer mu.Unlock()
	delete(classes, name)
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Qualified forms the fully-qualified name of one of this class's own
// rules.
func (c *Class) Qualified(rule string) string {
	return c.name + "/" + rule
}

// ownRule reports whether the qualified name belongs to this class
// itself (not inherited).
func (c *Class) ownRule(q string) bool {
	return strings.HasPrefix(q, c.name+"/")
}

// AppliesRule compiles and registers a rule under this class.
//
// The rule name must be non-empty and unqualified; at least one of
// opts.If and opts.Do must be given.  With opts.Before or opts.After
// (at most one), the anchor must be the qualified name of an
// inherited rule; otherwise the rule goes at the end of the order.
func (c *Class) AppliesRule(ctx context.Context, name string, opts core.RuleOpts) error {
	if name == "" {
		return MissingRuleName
	}
	if strings.Contains(name, "/") {
		return &BadRuleName{Name: name}
	}
	if opts.If == "" && opts.Do == "" {
		return MissingRuleBody
	}

	q := c.Qualified(name)
	if _, have := c.rules[q]; have {
		return &DuplicateRule{Qualified: q}
	}

	at, err := c.insertionPoint(opts.Before, opts.After)
	if err != nil {
		return err
	}

	opts.Name = q
	opts.Before, opts.After = "", ""
	r, err := core.NewRule(ctx, opts)
	if err != nil {
		return err
	}

	c.insert(at, q, r)
	c.autoSplit = true
	return nil
}

// insertionPoint validates the before/after anchor and returns the
// index to insert at (len(order) for the end).
func (c *Class) insertionPoint(before, after string) (int, error) {
	if before != "" && after != "" {
		return 0, &BadAnchor{Anchor: before, Reason: "both before and after given"}
	}
	anchor := before
	if anchor == "" {
		anchor = after
	}
	if anchor == "" {
		return len(c.order), nil
	}
	if c.ownRule(anchor) {
		return 0, &BadAnchor{Anchor: anchor, Reason: "anchor is not a superclass rule"}
	}
	for i, q := range c.order {
		if q == anchor {
			if before != "" {
				return i, nil
			}
			return i + 1, nil
		}
	}
	return 0, &BadAnchor{Anchor: anchor, Reason: "no such inherited rule"}
}

func (c *Class) insert(at int, q string, r *core.Rule) {
	c.order = append(c.order, "")
	copy(c.order[at+1:], c.order[at:])
	c.order[at] = q
	c.rules[q] = r
}

// DisablesSuperclassRules removes inherited rules from this class's
// order.  Arguments may be exact qualified names (string), patterns
// (*regexp.Regexp), or predicates (func(string) bool) over qualified
// names.  A class cannot disable its own rules: an exact own name is
// an error, and patterns simply never match own rules.
func (c *Class) DisablesSuperclassRules(args ...interface{}) error {
	drop := make(map[string]bool)

	for _, arg := range args {
		switch vv := arg.(type) {
		case string:
			if c.ownRule(vv) {
				return &SameClassDisable{Qualified: vv}
			}
			found := false
			for _, q := range c.order {
				if q == vv {
					drop[q] = true
					found = true
				}
			}
			if !found {
				return &UnknownRule{Qualified: vv}
			}
		case *regexp.Regexp:
			for _, q := range c.order {
				if !c.ownRule(q) && vv.MatchString(q) {
					drop[q] = true
				}
			}
		case func(string) bool:
			for _, q := range c.order {
				if !c.ownRule(q) && vv(q) {
					drop[q] = true
				}
			}
		default:
			return &BadDisableArg{Arg: arg}
		}
	}

	if len(drop) == 0 {
		return nil
	}

	kept := make([]string, 0, len(c.order))
	for _, q := range c.order {
		if drop[q] {
			delete(c.rules, q)
			continue
		}
		kept = append(kept, q)
	}
	c.order = kept
	return nil
}

// CloneOpts are the overrides AppliesClonedRule can apply on top of
// the original rule.  Nil flag pointers mean "keep the original's".
type CloneOpts struct {
	If string
	Do string

	PrependAction string
	AppendAction  string

	AddPrecondition string

	DontRecord     *bool
	ContinueToNext *bool

	Before string
	After  string
}

// AppliesClonedRule registers a copy of an existing rule (inherited
// or own) under a new name, with overrides.  The original stays where
// it was.
func (c *Class) AppliesClonedRule(ctx context.Context, orig, name string, opts CloneOpts) error {
	if name == "" {
		return MissingRuleName
	}

	src, have := c.rules[orig]
	if !have {
		return &UnknownRule{Qualified: orig}
	}

	q := c.Qualified(name)
	if _, have := c.rules[q]; have {
		return &DuplicateRule{Qualified: q}
	}

	at, err := c.insertionPoint(opts.Before, opts.After)
	if err != nil {
		return err
	}

	r := src.Clone()
	r.Name = q

	if opts.DontRecord != nil {
		if err := r.SetDontRecord(*opts.DontRecord); err != nil {
			return err
		}
	}
	if opts.ContinueToNext != nil {
		if err := r.SetContinueToNext(*opts.ContinueToNext); err != nil {
			return err
		}
	}
	if opts.If != "" {
		if err := r.SetPredicate(ctx, opts.If); err != nil {
			return err
		}
	}
	if opts.Do != "" {
		if err := r.SetAction(ctx, opts.Do); err != nil {
			return err
		}
	}
	if opts.PrependAction != "" {
		if err := r.PrependAction(ctx, opts.PrependAction); err != nil {
			return err
		}
	}
	if opts.AppendAction != "" {
		if err := r.AppendAction(ctx, opts.AppendAction); err != nil {
			return err
		}
	}
	if opts.AddPrecondition != "" {
		if err := r.AddPrecondition(ctx, opts.AddPrecondition); err != nil {
			return err
		}
	}

	c.insert(at, q, r)
	c.autoSplit = true
	return nil
}

// UnwrapsLinesUsing makes WrapCustom the default line wrap style for
// parsers built from this class and installs the routine pair.
func (c *Class) UnwrapsLinesUsing(isWrapped func(string) bool, join func(last, cur string) string) error {
	if isWrapped == nil || join == nil {
		return core.BadUnwrapRoutine
	}
	c.wrapStyle = core.WrapCustom
	if c.mtype == core.MultilineNone {
		c.mtype = core.JoinNext
	}
	c.isWrapped = isWrapped
	c.join = join
	return nil
}

// SetMultilineType chooses which way this class's custom unwrap
// joins.  Only meaningful together with UnwrapsLinesUsing.
func (c *Class) SetMultilineType(mt core.MultilineType) {
	c.mtype = mt
}

// RuleNames returns the qualified rule order, inherited rules
// included.
func (c *Class) RuleNames() []string {
	acc := make([]string, len(c.order))
	copy(acc, c.order)
	return acc
}

// Rules projects the order onto compiled rules.
func (c *Class) Rules() []*core.Rule {
	acc := make([]*core.Rule, 0, len(c.order))
	for _, q := range c.order {
		acc = append(acc, c.rules[q])
	}
	return acc
}

// Rule returns one compiled rule by qualified name.
func (c *Class) Rule(q string) (*core.Rule, bool) {
	r, have := c.rules[q]
	return r, have
}

// NewParser builds a parser carrying this class's rules and unwrap
// defaults.  The given settings (nil for defaults) are applied first;
// the class's own line wrap style is used only when the settings
// leave LineWrapStyle empty.
func (c *Class) NewParser(s *core.Settings) (*core.Parser, error) {
	if s == nil {
		s = &core.Settings{}
	}
	settings := *s
	s = &settings
	if c.autoSplit {
		s.AutoSplit = true
	}
	if c.wrapStyle != "" && s.LineWrapStyle == "" {
		s.LineWrapStyle = c.wrapStyle
		s.MultilineType = c.mtype
	}

	p, err := core.NewParser(s)
	if err != nil {
		return nil, err
	}
	if s.LineWrapStyle == core.WrapCustom && c.isWrapped != nil {
		if err := p.SetCustomUnwrapRoutines(c.isWrapped, c.join); err != nil {
			return nil, err
		}
	}
	p.UseClassRules(c.name, c.Rules())
	return p, nil
}
