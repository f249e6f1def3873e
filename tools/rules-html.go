// Package tools has development-time utilities: currently HTML
// rendering of rule classes for documentation.
package tools

import (
	"fmt"
	"html"
	"io"

	"github.com/ruleline/ruleline/registry"
	"github.com/ruleline/ruleline/ruleset"

	md "github.com/russross/blackfriday/v2"
)

// RenderClassHTML writes an HTML fragment documenting the class's
// rules in dispatch order.  Rule Doc strings are Markdown.
func RenderClassHTML(c *registry.Class, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="ruleClass"><h2>%s</h2>`, html.EscapeString(c.Name()))
	f(`<table class="rules">`)

	for _, q := range c.RuleNames() {
		r, have := c.Rule(q)
		if !have {
			continue
		}
		f(`<tr class="rule"><td><span id="%s" class="ruleName">%s</span></td><td>`,
			html.EscapeString(q), html.EscapeString(q))

		if r.Doc != "" {
			f(`<div class="ruleDoc doc">%s</div>`, md.Run([]byte(r.Doc)))
		}
		if src := r.PredicateSource(); src != "" {
			f(`<div class="if"><code>%s</code></div>`, html.EscapeString(src))
		}
		if src := r.ActionSource(); src != "" {
			f(`<div class="do code"><pre>%s</pre></div>`, html.EscapeString(src))
		}
		if r.DontRecord() {
			f(`<div class="flag">dont_record</div>`)
		}
		if r.ContinueToNext() {
			f(`<div class="flag">continue_to_next</div>`)
		}
		f(`</td></tr>`)
	}

	f(`</table></div>`)
	return nil
}

// RenderFileHTML documents a rule file that hasn't been registered:
// its doc and its rules.  The file's options, begin and end actions
// are not rendered.
func RenderFileHTML(rf *ruleset.File, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="ruleFile"><h2>%s</h2>`, html.EscapeString(rf.Name))
	if rf.Doc != "" {
		f(`<div class="fileDoc doc">%s</div>`, md.Run([]byte(rf.Doc)))
	}

	f(`<table class="rules">`)
	for _, d := range rf.Rules {
		f(`<tr class="rule"><td>%s</td><td>`, html.EscapeString(d.Name))
		if d.Doc != "" {
			f(`<div class="ruleDoc doc">%s</div>`, md.Run([]byte(d.Doc)))
		}
		if d.If != "" {
			f(`<div class="if"><code>%s</code></div>`, html.EscapeString(d.If))
		}
		if d.Do != "" {
			f(`<div class="do code"><pre>%s</pre></div>`, html.EscapeString(d.Do))
		}
		f(`</td></tr>`)
	}
	f(`</table></div>`)
	return nil
}
