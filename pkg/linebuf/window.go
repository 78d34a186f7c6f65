// Package linebuf provides the line reader and look-back window the scanner
// uses to report context around matches.
package linebuf

// Window is a bounded FIFO of the most recent lines. It is never cleared, so
// at any point it holds the lines immediately preceding the read position.
type Window struct {
	lines []string
	head  int
	size  int
}

// NewWindow returns a window holding up to capacity lines. A zero capacity
// window stores nothing.
func NewWindow(capacity int) *Window {
	if capacity < 0 {
		capacity = 0
	}
	return &Window{lines: make([]string, capacity)}
}

// Push appends a line, evicting the oldest when full.
func (w *Window) Push(line string) {
	if len(w.lines) == 0 {
		return
	}
	idx := (w.head + w.size) % len(w.lines)
	if w.size == len(w.lines) {
		w.lines[w.head] = line
		w.head = (w.head + 1) % len(w.lines)
		return
	}
	w.lines[idx] = line
	w.size++
}

// Lines returns the buffered lines, oldest first.
func (w *Window) Lines() []string {
	out := make([]string, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.lines[(w.head+i)%len(w.lines)]
	}
	return out
}

// Len returns the number of buffered lines.
func (w *Window) Len() int {
	return w.size
}
