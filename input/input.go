// Package input provides remote line sources for the parsing engine:
// websocket endpoints and MQTT topics that stream line-oriented text
// (think remote log tails).
//
// Local inputs don't live here; the engine opens files itself and
// wraps any io.Reader.  Everything in this package satisfies
// core.LineSource and is owned by the caller: the engine never closes
// a remote source.
package input

import (
	"io"
	"strings"
	"sync"
)

// lineBuffer turns arbitrary text chunks (frames, messages) into
// physical lines with terminators, the way the engine wants them.
type lineBuffer struct {
	mu      sync.Mutex
	pending []string
	partial string
	closed  bool
	err     error
	cond    *sync.Cond
}

func newLineBuffer() *lineBuffer {
	b := &lineBuffer{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// feed splits a chunk into lines.  A chunk that doesn't end in a
// newline leaves a partial line buffered for the next chunk.
func (b *lineBuffer) feed(chunk string) {
	b.mu.Lock()
	text := b.partial + chunk
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			break
		}
		b.pending = append(b.pending, text[:i+1])
		text = text[i+1:]
	}
	b.partial = text
	b.cond.Broadcast()
	b.mu.Unlock()
}

// finish ends the stream.  A trailing partial line is emitted as the
// final line.
func (b *lineBuffer) finish(err error) {
	b.mu.Lock()
	if b.partial != "" {
		b.pending = append(b.pending, b.partial)
		b.partial = ""
	}
	b.closed = true
	b.err = err
	b.cond.Broadcast()
	b.mu.Unlock()
}

// next blocks for the next line; io.EOF after a clean finish.
func (b *lineBuffer) next() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.pending) == 0 && !b.closed {
		b.cond.Wait()
	}
	if 0 < len(b.pending) {
		line := b.pending[0]
		b.pending = b.pending[1:]
		return line, nil
	}
	if b.err != nil {
		return "", b.err
	}
	return "", io.EOF
}
