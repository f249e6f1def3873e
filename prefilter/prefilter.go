// Package prefilter builds a literal prefilter over a rule set.
//
// Most real rule sets anchor their predicates on literals: '$1 eq
// "ERROR:"', '$2 ne "ok"'.  A line containing none of those literals
// cannot satisfy any such rule, so dispatch can skip it without
// evaluating anything.  The literals go into an Aho-Corasick
// automaton; one scan per line answers for the whole rule set.
//
// The filter is only safe when every rule contributes at least one
// anchor.  A rule with no predicate, or a predicate with no string
// literal, can match any line, so ForRules returns nil for such sets
// and the engine dispatches normally.
package prefilter

import (
	"strings"

	"github.com/ruleline/ruleline/core"

	ac "github.com/petar-dambovaliev/aho-corasick"
)

// Config tunes filter construction.
type Config struct {
	// CaseInsensitive enables ASCII case-insensitive matching.
	CaseInsensitive bool

	// MinPatternLength drops anchors shorter than this.  Short
	// anchors match everything and just cost cycles.
	MinPatternLength int

	// MaxPatterns caps automaton size; 0 means no cap.  A rule
	// set over the cap gets no filter.
	MaxPatterns int
}

// DefaultConfig matches anchors of two or more bytes, case
// sensitively, with a generous cap.
func DefaultConfig() Config {
	return Config{
		MinPatternLength: 2,
		MaxPatterns:      1000,
	}
}

// Filter is the built prefilter.  Install it with
// core.Parser.SetPrefilter.
type Filter struct {
	ac       ac.AhoCorasick
	patterns []string
}

// Patterns returns the anchors the filter scans for.
func (f *Filter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}

// Keep implements core.LinePrefilter: true when the line contains at
// least one anchor.
func (f *Filter) Keep(line string) bool {
	return 0 < len(f.ac.FindAll(line))
}

// ForRules builds a filter for the rules, or returns nil when the
// rule set can't be prefiltered safely.
func ForRules(rules []*core.Rule, cfg Config) *Filter {
	if len(rules) == 0 {
		return nil
	}

	var patterns []string
	for _, r := range rules {
		pred := r.PredicateSource()
		if !suitable(pred) {
			// A disjunction or a negation can be satisfied
			// by lines containing none of the literals.
			return nil
		}
		anchors := literals(pred, cfg.MinPatternLength)
		if len(anchors) == 0 {
			// This rule can fire on lines with no anchor at
			// all; the filter would suppress it.
			return nil
		}
		patterns = append(patterns, anchors...)
	}
	if cfg.MaxPatterns != 0 && cfg.MaxPatterns < len(patterns) {
		return nil
	}

	builder := ac.NewAhoCorasickBuilder(ac.Opts{
		AsciiCaseInsensitive: cfg.CaseInsensitive,
		MatchKind:            ac.LeftMostLongestMatch,
	})

	return &Filter{
		ac:       builder.Build(patterns),
		patterns: patterns,
	}
}

// suitable rejects predicates whose truth doesn't imply the presence
// of one of their literals: disjunctions and negations.
func suitable(src string) bool {
	if src == "" {
		return false
	}
	if strings.Contains(src, "||") || strings.Contains(src, "!") {
		return false
	}
	for _, word := range strings.FieldsFunc(src, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '(' || r == ')'
	}) {
		switch word {
		case "or", "not", "ne":
			return false
		}
	}
	return true
}

// literals extracts double-quoted string literals from a predicate
// source.
func literals(src string, minLen int) []string {
	var acc []string
	for {
		i := strings.IndexByte(src, '"')
		if i < 0 {
			return acc
		}
		src = src[i+1:]
		j := 0
		for j < len(src) {
			if src[j] == '\\' {
				j += 2
				continue
			}
			if src[j] == '"' {
				break
			}
			j++
		}
		if len(src) <= j {
			return acc
		}
		lit := strings.ReplaceAll(src[:j], `\"`, `"`)
		if minLen <= len(lit) {
			acc = append(acc, lit)
		}
		src = src[j+1:]
	}
}
