package core

import (
	"context"
	"io"
	"os"
	"regexp"
	"strings"
)

// TrimMode controls automatic whitespace trimming of logical lines.
type TrimMode int

const (
	TrimNone TrimMode = iota
	TrimLeft
	TrimRight
	TrimBoth
)

var (
	// DefaultFieldSeparator splits lines into fields when
	// auto-split is on and no separator is configured.
	DefaultFieldSeparator = `\s+`

	// DefaultOFS joins field ranges when no separator argument is
	// given.  A single space; see LineContext.JoinRange.
	DefaultOFS = " "

	// DefaultIndentationStr is what indentation tracking counts.
	DefaultIndentationStr = " "
)

// Settings configures a Parser.  The zero value is a plain
// line-at-a-time parser: no chomping, no splitting, no trimming, no
// unwrapping.
type Settings struct {
	// AutoChomp strips the line terminator from each logical
	// line.
	AutoChomp bool

	// AutoSplit builds the fields array for each logical line.
	// Adding a rule turns this on, since rules are tested against
	// fields.
	AutoSplit bool

	// AutoTrim trims whitespace from each logical line.
	AutoTrim TrimMode

	// CustomLineTrimmer replaces AutoTrim when set.  Whatever it
	// returns is the line; there are no guardrails.
	CustomLineTrimmer func(string) string

	// FieldSeparator is a regular expression source.  Defaults to
	// `\s+`.
	FieldSeparator string

	// OFS joins field ranges (JoinRange) when the rule doesn't
	// pass a separator.  Defaults to a single space.
	OFS string

	// TrackIndentation computes each line's indent as the count
	// of leading IndentationStr occurrences.
	TrackIndentation bool

	// IndentationStr defaults to a single space.
	IndentationStr string

	// LineWrapStyle selects the unwrap style.
	LineWrapStyle WrapStyle

	// MultilineType is derived from LineWrapStyle for the
	// built-in styles; for WrapCustom it says which way the
	// custom routines join.
	MultilineType MultilineType

	// Interpreters overrides DefaultInterpreters for rules added
	// to this parser.
	Interpreters map[string]Interpreter
}

// LinePrefilter can veto rule dispatch for a line.  See package
// prefilter.
type LinePrefilter interface {
	Keep(line string) bool
}

// Parser is the engine: it drives a LineSource through the unwrap
// machine, dispatches rules over each logical line, and accumulates
// records and stash variables.
//
// A Parser processes one input at a time; it is not safe for
// concurrent use.
type Parser struct {
	autoChomp     bool
	autoSplit     bool
	autoTrim      TrimMode
	customTrimmer func(string) string
	fs            *regexp.Regexp
	ofs           string
	trackIndent   bool
	indentStr     string
	wrapStyle     WrapStyle
	mtype         MultilineType
	customWrapped func(string) bool
	customJoin    func(last, cur string) string
	interpreters  map[string]Interpreter

	className  string
	classRules []*Rule
	rules      []*Rule
	beginRule  *Rule
	beginSrc   string
	endRule    *Rule
	endSrc     string

	prefilter LinePrefilter

	filename string
	fh       io.Reader

	records     []interface{}
	stash       map[string]interface{}
	preStash    map[string]interface{}
	linesParsed int
	aborted     bool
	thisLine    string
	hasLine     bool
	thisIndent  int
}

// NewParser builds a Parser.  A nil settings means all defaults.
func NewParser(s *Settings) (*Parser, error) {
	if s == nil {
		s = &Settings{}
	}

	fsSrc := s.FieldSeparator
	if fsSrc == "" {
		fsSrc = DefaultFieldSeparator
	}
	fs, err := regexp.Compile(fsSrc)
	if err != nil {
		return nil, err
	}

	ofs := s.OFS
	if ofs == "" {
		ofs = DefaultOFS
	}
	indent := s.IndentationStr
	if indent == "" {
		indent = DefaultIndentationStr
	}

	mtype := s.MultilineType
	if s.LineWrapStyle != WrapCustom {
		mtype = multilineTypeFor(s.LineWrapStyle)
	}

	return &Parser{
		autoChomp:     s.AutoChomp,
		autoSplit:     s.AutoSplit,
		autoTrim:      s.AutoTrim,
		customTrimmer: s.CustomLineTrimmer,
		fs:            fs,
		ofs:           ofs,
		trackIndent:   s.TrackIndentation,
		indentStr:     indent,
		wrapStyle:     s.LineWrapStyle,
		mtype:         mtype,
		interpreters:  s.Interpreters,
		stash:         make(map[string]interface{}),
		preStash:      make(map[string]interface{}),
	}, nil
}

// SetFieldSeparator replaces the field-splitting regexp.
func (p *Parser) SetFieldSeparator(src string) error {
	fs, err := regexp.Compile(src)
	if err != nil {
		return err
	}
	p.fs = fs
	return nil
}

// SetLineWrapStyle switches the unwrap style.  Built-in styles derive
// their MultilineType; switching to WrapCustom keeps whatever custom
// routines were installed.
func (p *Parser) SetLineWrapStyle(style WrapStyle) {
	p.wrapStyle = style
	if style != WrapCustom {
		p.mtype = multilineTypeFor(style)
	} else if p.mtype == MultilineNone {
		p.mtype = JoinNext
	}
}

// SetCustomUnwrapRoutines installs the is-wrapped predicate and the
// join routine for the WrapCustom style.  The style must already be
// WrapCustom.
func (p *Parser) SetCustomUnwrapRoutines(isWrapped func(string) bool, join func(last, cur string) string) error {
	if p.wrapStyle != WrapCustom {
		return WrapStyleNotCustom
	}
	if isWrapped == nil || join == nil {
		return BadUnwrapRoutine
	}
	p.customWrapped = isWrapped
	p.customJoin = join
	return nil
}

// AddRule compiles and appends an instance rule.  Rules dispatch over
// fields, so this also turns auto-split on.
func (p *Parser) AddRule(ctx context.Context, opts RuleOpts) error {
	if opts.Interpreters == nil {
		opts.Interpreters = p.interpreters
	}
	r, err := NewRule(ctx, opts)
	if err != nil {
		return err
	}
	p.rules = append(p.rules, r)
	p.autoSplit = true
	return nil
}

// ClearRules drops all instance rules.
func (p *Parser) ClearRules() {
	p.rules = nil
}

// Rules returns the dispatch chain: class rules first, then instance
// rules.
func (p *Parser) Rules() []*Rule {
	acc := make([]*Rule, 0, len(p.classRules)+len(p.rules))
	acc = append(acc, p.classRules...)
	acc = append(acc, p.rules...)
	return acc
}

// UseClassRules attaches a registry class's compiled rules.  They
// dispatch before instance rules, in registry order.
func (p *Parser) UseClassRules(class string, rules []*Rule) {
	p.className = class
	p.classRules = rules
	if 0 < len(rules) {
		p.autoSplit = true
	}
}

// BeginRule installs (or extends) the action that runs before the
// first line of every read.  Successive calls concatenate their
// action sources.  A BEGIN action's return value is never recorded;
// it exists to seed the stash.
func (p *Parser) BeginRule(ctx context.Context, opts RuleOpts) error {
	src := opts.Do
	if p.beginSrc != "" {
		src = p.beginSrc + "\n" + src
	}
	r, err := NewRule(ctx, RuleOpts{
		Do:           src,
		DontRecord:   true,
		Interpreter:  opts.Interpreter,
		Interpreters: p.interpreters,
	})
	if err != nil {
		return err
	}
	p.beginSrc = src
	p.beginRule = r
	return nil
}

// EndRule installs (or extends) the action that runs after the last
// line of every read.  Its return value is recorded unless
// DontRecord is set.
func (p *Parser) EndRule(ctx context.Context, opts RuleOpts) error {
	src := opts.Do
	if p.endSrc != "" {
		src = p.endSrc + "\n" + src
	}
	r, err := NewRule(ctx, RuleOpts{
		Do:             src,
		DontRecord:     opts.DontRecord,
		ContinueToNext: opts.ContinueToNext,
		Interpreter:    opts.Interpreter,
		Interpreters:   p.interpreters,
	})
	if err != nil {
		return err
	}
	p.endSrc = src
	p.endRule = r
	return nil
}

// SetPrefilter installs a line prefilter; a line the filter rejects
// skips rule dispatch entirely.  nil removes the filter.
func (p *Parser) SetPrefilter(pf LinePrefilter) {
	p.prefilter = pf
}

// SetFilename selects a file as the input for the next Read.  The
// file must exist; setting a filename clears any filehandle, and vice
// versa.
func (p *Parser) SetFilename(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	p.filename = path
	p.fh = nil
	return nil
}

// Filename returns the currently selected filename, if any.
func (p *Parser) Filename() string { return p.filename }

// SetFilehandle selects a caller-owned reader as the input for the
// next Read.  The engine never closes it.
func (p *Parser) SetFilehandle(r io.Reader) {
	p.fh = r
	p.filename = ""
}

// Read parses the currently selected input.  With a filename, the
// engine opens the file, verifies it is plain text, and closes it on
// every exit path.  With a filehandle, the engine reads it and leaves
// it open.  With neither, Read returns nil without touching any
// state.
func (p *Parser) Read(ctx context.Context) error {
	switch {
	case p.fh != nil:
		return p.readSource(ctx, NewReaderSource(p.fh), false)
	case p.filename != "":
		src, err := OpenFileSource(p.filename)
		if err != nil {
			return err
		}
		return p.readSource(ctx, src, true)
	default:
		return nil
	}
}

// ReadFrom parses a caller-provided LineSource.  The engine does not
// close it.
func (p *Parser) ReadFrom(ctx context.Context, src LineSource) error {
	return p.readSource(ctx, src, false)
}

// ReadString parses the given text.
func (p *Parser) ReadString(ctx context.Context, text string) error {
	return p.readSource(ctx, NewReaderSource(strings.NewReader(text)), false)
}

func (p *Parser) readSource(ctx context.Context, src LineSource, owned bool) (err error) {
	if owned {
		if c, is := src.(io.Closer); is {
			defer func() {
				if cerr := c.Close(); err == nil {
					err = cerr
				}
			}()
		}
	}

	p.records = make([]interface{}, 0, 16)
	p.stash = make(map[string]interface{})
	p.linesParsed = 0
	p.aborted = false
	p.thisLine, p.hasLine, p.thisIndent = "", false, 0

	u, err := newUnwrapper(p.wrapStyle, p.mtype, p.customWrapped, p.customJoin)
	if err != nil {
		return err
	}

	if p.beginRule != nil {
		lc := &LineContext{Parser: p}
		if _, _, err := p.beginRule.Run(ctx, lc); err != nil {
			return err
		}
	}

	for {
		raw, rerr := src.Next()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
		p.linesParsed++

		logical, have, uerr := u.push(raw, p.linesParsed)
		if uerr != nil {
			return uerr
		}
		if have {
			if err := p.dispatch(ctx, logical); err != nil {
				return err
			}
		}
		if p.aborted {
			break
		}
	}

	if !p.aborted {
		logical, have, uerr := u.flush(p.linesParsed)
		if uerr != nil {
			return uerr
		}
		if have {
			if err := p.dispatch(ctx, logical); err != nil {
				return err
			}
		}
	}

	// END runs even after abort_reading.
	if p.endRule != nil {
		lc := &LineContext{Parser: p}
		v, record, eerr := p.endRule.Run(ctx, lc)
		if eerr != nil {
			return eerr
		}
		if record {
			p.records = append(p.records, v)
		}
	}

	// The transient stash and line context die with the read; the
	// pre-stash persists.
	p.stash = make(map[string]interface{})
	p.thisLine, p.hasLine = "", false

	return nil
}

// dispatch runs the rule chain over one logical line.
func (p *Parser) dispatch(ctx context.Context, logical string) error {
	line := logical
	if p.autoChomp {
		line = chomp(line)
	}

	indent := 0
	if p.trackIndent {
		// Indent is measured before trimming, which would
		// otherwise eat it.
		for rest := chomp(logical); strings.HasPrefix(rest, p.indentStr); rest = rest[len(p.indentStr):] {
			indent++
		}
	}

	if p.customTrimmer != nil {
		line = p.customTrimmer(line)
	} else {
		switch p.autoTrim {
		case TrimLeft:
			line = strings.TrimLeft(line, " \t")
		case TrimRight:
			line = strings.TrimRight(line, " \t\r\n")
		case TrimBoth:
			line = strings.Trim(line, " \t\r\n")
		}
	}

	var fields []string
	if p.autoSplit {
		// The line is trimmed of outer whitespace before the
		// split so a leading separator doesn't produce an
		// empty first field.
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			fields = []string{}
		} else {
			fields = p.fs.Split(trimmed, -1)
		}
	}

	lc := &LineContext{
		Line:   line,
		Fields: fields,
		NR:     p.linesParsed,
		Indent: indent,
		Parser: p,
	}
	p.thisLine, p.hasLine, p.thisIndent = line, true, indent

	if p.prefilter != nil && !p.prefilter.Keep(line) {
		return nil
	}

	for _, r := range p.classRules {
		stop, err := p.dispatchOne(ctx, r, lc)
		if err != nil || stop {
			return err
		}
	}
	for _, r := range p.rules {
		stop, err := p.dispatchOne(ctx, r, lc)
		if err != nil || stop {
			return err
		}
	}

	return nil
}

func (p *Parser) dispatchOne(ctx context.Context, r *Rule, lc *LineContext) (bool, error) {
	ok, err := r.Test(ctx, lc)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	v, record, err := r.Run(ctx, lc)
	if err != nil {
		return false, err
	}
	if record {
		p.records = append(p.records, v)
	}
	return !r.ContinueToNext(), nil
}

// AbortReading cooperatively stops the read at the end of the current
// line's dispatch.  The END rule still runs.
func (p *Parser) AbortReading() {
	p.aborted = true
}

// Aborted reports whether the last read was stopped by AbortReading.
func (p *Parser) Aborted() bool { return p.aborted }

// LinesParsed counts physical lines read so far (logical lines can
// span several).
func (p *Parser) LinesParsed() int { return p.linesParsed }

// ThisLine returns the logical line currently (or last) dispatched.
func (p *Parser) ThisLine() (string, bool) { return p.thisLine, p.hasLine }

// ThisIndent returns the indentation of the current logical line.
func (p *Parser) ThisIndent() int { return p.thisIndent }

// Records returns the accumulated records of the last read.
func (p *Parser) Records() []interface{} { return p.records }

// LastRecord returns the most recent record, nil if there are none.
func (p *Parser) LastRecord() interface{} {
	if len(p.records) == 0 {
		return nil
	}
	return p.records[len(p.records)-1]
}

// PopRecord removes and returns the most recent record.
func (p *Parser) PopRecord() interface{} {
	if len(p.records) == 0 {
		return nil
	}
	last := p.records[len(p.records)-1]
	p.records = p.records[:len(p.records)-1]
	return last
}

// PushRecords appends records directly, bypassing any rule.
func (p *Parser) PushRecords(xs ...interface{}) {
	p.records = append(p.records, xs...)
}
