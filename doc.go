// Package ruleline provides declarative, rule-driven parsing of
// line-oriented text.
//
// The core engine is in package 'core'.  Rule predicate and action
// sources are written in a small AWK-like language ('$1', '${2+}',
// '~stashed') that package 'lang' lowers to ECMAScript for execution
// by the default interpreter in 'interpreters/goja'.
//
// Package 'registry' holds per-class rule sets with inheritance, and
// 'ruleset' loads rule files from YAML.
package ruleline
