package registry

// These errors are user errors raised at class-definition time, which
// for a registry is the moral equivalent of compile time: they should
// surface the first time the program runs, not mid-read.

import (
	"errors"
	"fmt"
)

var (
	// MainNamespace occurs when a class is defined with no name or
	// with the reserved name "main".
	MainNamespace = errors.New("rule classes cannot live in the main namespace")

	// MissingRuleName occurs when AppliesRule (or a clone) is
	// given an empty rule name.
	MissingRuleName = errors.New("rule needs a name")

	// MissingRuleBody occurs when a rule gives neither a
	// predicate nor an action.
	MissingRuleBody = errors.New("rule needs at least one of if/do")
)

// BadRuleName occurs when a rule name is already qualified (contains
// a '/').
type BadRuleName struct {
	Name string
}

func (e *BadRuleName) Error() string {
	return fmt.Sprintf("bad rule name %q", e.Name)
}

// DuplicateClass occurs when a class name is defined twice.
type DuplicateClass struct {
	Name string
}

func (e *DuplicateClass) Error() string {
	return fmt.Sprintf("class %q already defined", e.Name)
}

// DuplicateRule occurs when a qualified rule name is registered
// twice in the same class.
type DuplicateRule struct {
	Qualified string
}

func (e *DuplicateRule) Error() string {
	return fmt.Sprintf("rule %q already registered", e.Qualified)
}

// BadAnchor occurs when a before/after insertion anchor is ambiguous,
// missing, or not an inherited rule.
type BadAnchor struct {
	Anchor string
	Reason string
}

func (e *BadAnchor) Error() string {
	return fmt.Sprintf("bad anchor %q: %s", e.Anchor, e.Reason)
}

// UnknownRule occurs when a qualified rule name isn't in the class's
// order.
type UnknownRule struct {
	Qualified string
}

func (e *UnknownRule) Error() string {
	return fmt.Sprintf("no rule %q", e.Qualified)
}

// SameClassDisable occurs when a class tries to disable one of its
// own rules.
type SameClassDisable struct {
	Qualified string
}

func (e *SameClassDisable) Error() string {
	return fmt.Sprintf("cannot disable same-class rule %q", e.Qualified)
}

// BadDisableArg occurs when DisablesSuperclassRules is given
// something other than a name, a pattern, or a predicate.
type BadDisableArg struct {
	Arg interface{}
}

func (e *BadDisableArg) Error() string {
	return fmt.Sprintf("bad disable argument (%T)", e.Arg)
}
