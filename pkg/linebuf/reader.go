package linebuf

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Reader reads lines and tracks the byte offset consumed so far.
//
// ReadAhead is a side read on the same stream: the lines it returns are
// consumed. The caller reports them as context but never tests them against
// the matcher, so a match inside an after-context window is not counted on
// its own.
type Reader struct {
	r      *bufio.Reader
	offset int64
	err    error
}

// NewReader wraps r, which is positioned at start.
func NewReader(r io.Reader, start int64) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024), offset: start}
}

// Next returns the next line without its line terminator. ok is false at end
// of input. A final line without a trailing newline is still returned.
func (r *Reader) Next() (line string, ok bool, err error) {
	if errors.Is(r.err, io.EOF) {
		return "", false, nil
	}
	if r.err != nil {
		return "", false, r.err
	}

	text, err := r.r.ReadString('\n')
	r.offset += int64(len(text))
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = err
			return "", false, err
		}
		r.err = io.EOF
		if text == "" {
			return "", false, nil
		}
	}

	text = strings.TrimSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\r")
	return text, true, nil
}

// ReadAhead reads up to n further lines. It stops early at end of input.
func (r *Reader) ReadAhead(n int) ([]string, error) {
	var out []string
	for i := 0; i < n; i++ {
		line, ok, err := r.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, line)
	}
	return out, nil
}

// Offset returns the absolute byte offset just past the last line returned.
func (r *Reader) Offset() int64 {
	return r.offset
}
