package core

import (
	"bufio"
	"io"
	"net/http"
	"os"
)

// LineSource yields physical lines, terminators included (so that
// chomping is meaningful).  Next returns io.EOF when the input is
// done.
//
// The engine treats a LineSource as opaque.  A source that also
// implements io.Closer is closed by the engine only when the engine
// opened it itself (i.e. from a filename).
type LineSource interface {
	Next() (string, error)
}

// ReaderSource adapts any io.Reader into a LineSource.
type ReaderSource struct {
	r   *bufio.Reader
	err error
}

// NewReaderSource wraps the reader.  The caller keeps ownership.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: bufio.NewReader(r)}
}

// Next returns the next physical line including its terminator.  A
// final line with no terminator is returned before io.EOF.
func (s *ReaderSource) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	line, err := s.r.ReadString('\n')
	if err == io.EOF && line != "" {
		s.err = io.EOF
		return line, nil
	}
	if err != nil {
		s.err = err
		return "", err
	}
	return line, nil
}

// FileSource is a LineSource the engine opened from a filename.  The
// engine closes these itself on every exit path.
type FileSource struct {
	Path string

	f *os.File
	*ReaderSource
}

// OpenFileSource opens path and verifies that it looks like plain
// text before handing lines out.
func OpenFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	// Sniff the head of the file.  Anything the content detector
	// doesn't call text is rejected.
	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, err
	}
	if 0 < n && !isPlainText(head[:n]) {
		f.Close()
		return nil, &NotPlainText{Path: path}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	return &FileSource{
		Path:         path,
		f:            f,
		ReaderSource: NewReaderSource(f),
	}, nil
}

func (s *FileSource) Close() error {
	return s.f.Close()
}

func isPlainText(head []byte) bool {
	ct := http.DetectContentType(head)
	return len(ct) >= 5 && ct[:5] == "text/"
}
