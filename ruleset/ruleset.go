// Package ruleset loads declarative rule files.
//
// A rule file is a YAML document giving parser options and an ordered
// rule list:
//
//	name: netlist
//	options:
//	  auto_chomp: true
//	  line_wrap_style: spice
//	rules:
//	  - name: comment
//	    if: 'substr($1, 0, 1) eq "*"'
//	    dont_record: true
//	  - name: instance
//	    if: 'upper(substr($1, 0, 1)) eq "M"'
//	    do: 'return $0'
//	begin:
//	  do: '~count = 0'
//	end:
//	  do: 'return ~count'
//
// A file can build a standalone parser (Parser) or register itself as
// a rule class (Register), optionally extending classes defined
// earlier.
package ruleset

import (
	"context"
	"fmt"
	"io/ioutil"

	"github.com/jsccast/yaml"
	yamlv2 "gopkg.in/yaml.v2"

	"github.com/ruleline/ruleline/core"
	"github.com/ruleline/ruleline/registry"
)

// RuleDef is one rule in a rule file.
type RuleDef struct {
	Name           string   `yaml:"name" json:"name"`
	Doc            string   `yaml:"doc,omitempty" json:"doc,omitempty"`
	If             string   `yaml:"if,omitempty" json:"if,omitempty"`
	Do             string   `yaml:"do,omitempty" json:"do,omitempty"`
	Interpreter    string   `yaml:"interpreter,omitempty" json:"interpreter,omitempty"`
	DontRecord     bool     `yaml:"dont_record,omitempty" json:"dont_record,omitempty"`
	ContinueToNext bool     `yaml:"continue_to_next,omitempty" json:"continue_to_next,omitempty"`
	Preconditions  []string `yaml:"preconditions,omitempty" json:"preconditions,omitempty"`
	Before         string   `yaml:"before,omitempty" json:"before,omitempty"`
	After          string   `yaml:"after,omitempty" json:"after,omitempty"`
}

func (d *RuleDef) opts() core.RuleOpts {
	return core.RuleOpts{
		Name:           d.Name,
		Doc:            d.Doc,
		If:             d.If,
		Do:             d.Do,
		Interpreter:    d.Interpreter,
		DontRecord:     d.DontRecord,
		ContinueToNext: d.ContinueToNext,
		Preconditions:  d.Preconditions,
		Before:         d.Before,
		After:          d.After,
	}
}

// ActionDef is a BEGIN or END action.
type ActionDef struct {
	Do          string `yaml:"do" json:"do"`
	Interpreter string `yaml:"interpreter,omitempty" json:"interpreter,omitempty"`
	DontRecord  bool   `yaml:"dont_record,omitempty" json:"dont_record,omitempty"`
}

// Options mirrors core.Settings in YAML-friendly form.
type Options struct {
	AutoChomp        bool   `yaml:"auto_chomp,omitempty" json:"auto_chomp,omitempty"`
	AutoSplit        bool   `yaml:"auto_split,omitempty" json:"auto_split,omitempty"`
	AutoTrim         string `yaml:"auto_trim,omitempty" json:"auto_trim,omitempty"`
	FieldSeparator   string `yaml:"field_separator,omitempty" json:"field_separator,omitempty"`
	OFS              string `yaml:"ofs,omitempty" json:"ofs,omitempty"`
	TrackIndentation bool   `yaml:"track_indentation,omitempty" json:"track_indentation,omitempty"`
	IndentationStr   string `yaml:"indentation_str,omitempty" json:"indentation_str,omitempty"`
	LineWrapStyle    string `yaml:"line_wrap_style,omitempty" json:"line_wrap_style,omitempty"`
}

func (o *Options) settings() (*core.Settings, error) {
	s := &core.Settings{
		AutoChomp:        o.AutoChomp,
		AutoSplit:        o.AutoSplit,
		FieldSeparator:   o.FieldSeparator,
		OFS:              o.OFS,
		TrackIndentation: o.TrackIndentation,
		IndentationStr:   o.IndentationStr,
		LineWrapStyle:    core.WrapStyle(o.LineWrapStyle),
	}
	switch o.AutoTrim {
	case "", "n", "none":
		s.AutoTrim = core.TrimNone
	case "l", "left":
		s.AutoTrim = core.TrimLeft
	case "r", "right":
		s.AutoTrim = core.TrimRight
	case "b", "both":
		s.AutoTrim = core.TrimBoth
	default:
		return nil, fmt.Errorf("bad auto_trim %q", o.AutoTrim)
	}
	switch core.WrapStyle(o.LineWrapStyle) {
	case "", core.WrapNone, core.WrapTrailingBackslash, core.WrapSpice,
		core.WrapJustNextLine, core.WrapSlurp:
	case core.WrapCustom:
		// Custom routines can't be expressed in YAML.
		return nil, fmt.Errorf("line_wrap_style custom needs routines installed in code")
	default:
		return nil, fmt.Errorf("bad line_wrap_style %q", o.LineWrapStyle)
	}
	return s, nil
}

// File is a parsed rule file.
type File struct {
	Name    string     `yaml:"name" json:"name"`
	Doc     string     `yaml:"doc,omitempty" json:"doc,omitempty"`
	Extends []string   `yaml:"extends,omitempty" json:"extends,omitempty"`
	Options Options    `yaml:"options,omitempty" json:"options,omitempty"`
	Rules   []RuleDef  `yaml:"rules,omitempty" json:"rules,omitempty"`
	Begin   *ActionDef `yaml:"begin,omitempty" json:"begin,omitempty"`
	End     *ActionDef `yaml:"end,omitempty" json:"end,omitempty"`
}

// Parse reads a rule file from YAML.
func Parse(body []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(body, &f); err != nil {
		return nil, err
	}
	if f.Name == "" {
		return nil, fmt.Errorf("rule file needs a name")
	}
	return &f, nil
}

// Load reads a rule file from disk.
func Load(path string) (*File, error) {
	body, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(body)
}

// Marshal renders the file back to YAML.
func (f *File) Marshal() ([]byte, error) {
	return yamlv2.Marshal(f)
}

// Parser builds a standalone parser with the file's rules attached as
// instance rules.
func (f *File) Parser(ctx context.Context) (*core.Parser, error) {
	s, err := f.Options.settings()
	if err != nil {
		return nil, err
	}
	p, err := core.NewParser(s)
	if err != nil {
		return nil, err
	}
	for _, d := range f.Rules {
		if err := p.AddRule(ctx, d.opts()); err != nil {
			return nil, fmt.Errorf("rule %q: %w", d.Name, err)
		}
	}
	if f.Begin != nil {
		if err := p.BeginRule(ctx, core.RuleOpts{Do: f.Begin.Do, Interpreter: f.Begin.Interpreter}); err != nil {
			return nil, err
		}
	}
	if f.End != nil {
		if err := p.EndRule(ctx, core.RuleOpts{
			Do:          f.End.Do,
			Interpreter: f.End.Interpreter,
			DontRecord:  f.End.DontRecord,
		}); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Register defines the file as a rule class, inheriting any classes
// named by extends (which must be registered already).
func (f *File) Register(ctx context.Context) (*registry.Class, error) {
	supers := make([]*registry.Class, 0, len(f.Extends))
	for _, name := range f.Extends {
		s, have := registry.Lookup(name)
		if !have {
			return nil, fmt.Errorf("unknown class %q", name)
		}
		supers = append(supers, s)
	}

	c, err := registry.Define(f.Name, supers...)
	if err != nil {
		return nil, err
	}
	for _, d := range f.Rules {
		if err := c.AppliesRule(ctx, d.Name, d.opts()); err != nil {
			return nil, fmt.Errorf("rule %q: %w", d.Name, err)
		}
	}
	return c, nil
}
