package core

import "strings"

// MultilineType says which neighbor a wrapped line joins.
type MultilineType int

const (
	// MultilineNone disables line unwrapping.
	MultilineNone MultilineType = iota

	// JoinNext means a wrapped line continues onto the next
	// physical line.
	JoinNext

	// JoinLast means a wrapped line continues the previous
	// physical line.
	JoinLast
)

// WrapStyle selects one of the built-in unwrap styles (or "custom").
type WrapStyle string

const (
	WrapNone              WrapStyle = "none"
	WrapTrailingBackslash WrapStyle = "trailing_backslash"
	WrapSpice             WrapStyle = "spice"
	WrapJustNextLine      WrapStyle = "just_next_line"
	WrapSlurp             WrapStyle = "slurp"
	WrapCustom            WrapStyle = "custom"
)

// multilineTypeFor gives the MultilineType a built-in style implies.
func multilineTypeFor(style WrapStyle) MultilineType {
	switch style {
	case WrapTrailingBackslash:
		return JoinNext
	case WrapSpice, WrapJustNextLine, WrapSlurp:
		return JoinLast
	default:
		return MultilineNone
	}
}

func chomp(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// unwrapper is the two-state line-joining machine: Idle, or buffering
// a partially assembled logical line.
//
// For JoinNext styles, wrappedNext asks whether the buffered line
// expects a continuation.  For JoinLast styles, wrappedLast asks
// whether the incoming line continues its predecessor; the style
// decides how to treat the very first line of input.
type unwrapper struct {
	mtype       MultilineType
	wrappedNext func(last string) bool
	wrappedLast func(cur string, first bool) bool
	join        func(last, cur string) string

	buffering bool
	buf       string
	seenFirst bool
}

// newUnwrapper builds the machine for a style.  For WrapCustom the
// caller supplies the pair.
func newUnwrapper(style WrapStyle, mtype MultilineType, isWrapped func(string) bool, join func(last, cur string) string) (*unwrapper, error) {
	u := &unwrapper{}

	switch style {
	case WrapNone, "":
		u.mtype = MultilineNone

	case WrapTrailingBackslash:
		u.mtype = JoinNext
		u.wrappedNext = func(last string) bool {
			return strings.HasSuffix(strings.TrimSpace(last), `\`)
		}
		u.join = func(last, cur string) string {
			l := strings.TrimSpace(chomp(last))
			l = strings.TrimSpace(strings.TrimSuffix(l, `\`))
			return l + " " + cur
		}

	case WrapSpice:
		u.mtype = JoinLast
		u.wrappedLast = func(cur string, _ bool) bool {
			return strings.HasPrefix(cur, "+")
		}
		u.join = func(last, cur string) string {
			return chomp(last) + strings.TrimPrefix(cur, "+")
		}

	case WrapJustNextLine:
		u.mtype = JoinLast
		u.wrappedLast = func(cur string, first bool) bool {
			return !first && strings.TrimSpace(cur) != ""
		}
		u.join = func(last, cur string) string {
			return chomp(last) + cur
		}

	case WrapSlurp:
		u.mtype = JoinLast
		u.wrappedLast = func(_ string, first bool) bool {
			return !first
		}
		u.join = func(last, cur string) string {
			return last + cur
		}

	case WrapCustom:
		if isWrapped == nil || join == nil {
			return nil, NoUnwrapRoutines
		}
		if mtype == MultilineNone {
			mtype = JoinNext
		}
		u.mtype = mtype
		if mtype == JoinNext {
			u.wrappedNext = isWrapped
		} else {
			u.wrappedLast = func(cur string, _ bool) bool { return isWrapped(cur) }
		}
		u.join = join
	}

	return u, nil
}

// push feeds one physical line and returns the logical line it
// completes, if any.  nr is the 1-based physical line number, used
// only in errors.
func (u *unwrapper) push(raw string, nr int) (string, bool, error) {
	switch u.mtype {
	case MultilineNone:
		return raw, true, nil

	case JoinNext:
		if u.buffering {
			u.buf = u.join(u.buf, raw)
		} else {
			u.buf = raw
			u.buffering = true
		}
		if u.wrappedNext(u.buf) {
			return "", false, nil
		}
		out := u.buf
		u.buf = ""
		u.buffering = false
		return out, true, nil

	default: // JoinLast
		first := !u.seenFirst
		u.seenFirst = true

		if u.wrappedLast(raw, first) {
			if !u.buffering {
				return "", false, &UnexpectedContinuation{Line: raw, NR: nr}
			}
			u.buf = u.join(u.buf, raw)
			return "", false, nil
		}

		var (
			out  string
			have bool
		)
		if u.buffering {
			out = u.buf
			have = true
		}
		u.buf = raw
		u.buffering = true
		return out, have, nil
	}
}

// flush ends the input.  For JoinNext a pending wrapped buffer is an
// error; for JoinLast any pending buffer is simply the final logical
// line.
func (u *unwrapper) flush(nr int) (string, bool, error) {
	if !u.buffering {
		return "", false, nil
	}
	out := u.buf
	u.buf = ""
	u.buffering = false
	if u.mtype == JoinNext && u.wrappedNext(out) {
		return "", false, &UnexpectedEOF{Pending: out, NR: nr}
	}
	return out, true, nil
}

func (u *unwrapper) reset() {
	u.buffering = false
	u.buf = ""
	u.seenFirst = false
}
