package stream

import "fmt"

// FocusWindow is the bounded view into the input buffer the codec
// engine operates on. Rather than scanning the entire history on
// every cycle, the scheduler's actions all read and patch only the
// window's current span, and ShiftWindow moves that span forward as the
// input is consumed.
type FocusWindow struct {
	data    []byte
	start   int
	end     int
	maxSize int
}

// NewFocusWindow creates a window over data spanning [start, start+size),
// clamped to data's bounds, with an upper bound maxSize on how large Grow
// may ever make it.
func NewFocusWindow(data []byte, start, size, maxSize int) (*FocusWindow, error) {
	if start < 0 || start > len(data) {
		return nil, fmt.Errorf("stream: window start %d out of bounds [0,%d]", start, len(data))
	}
	end := start + size
	if end > len(data) {
		end = len(data)
	}
	return &FocusWindow{data: data, start: start, end: end, maxSize: maxSize}, nil
}

// Bytes returns the window's current byte span.
func (w *FocusWindow) Bytes() []byte {
	return w.data[w.start:w.end]
}

// Start returns the window's absolute start offset into data.
func (w *FocusWindow) Start() int {
	return w.start
}

// End returns the window's absolute end offset into data.
func (w *FocusWindow) End() int {
	return w.end
}

// Len returns the number of bytes currently in view.
func (w *FocusWindow) Len() int {
	return w.end - w.start
}

// Translate converts an offset local to the window (0 is the window's
// first byte) into an absolute offset into the underlying buffer.
func (w *FocusWindow) Translate(local int) int {
	return w.start + local
}

// Shift moves the window forward by delta bytes, keeping its length fixed
// where the underlying buffer allows. Shift never moves the window
// backward; delta must be non-negative.
func (w *FocusWindow) Shift(delta int) error {
	if delta < 0 {
		return fmt.Errorf("stream: window shift delta %d must be non-negative", delta)
	}
	length := w.Len()
	newStart := w.start + delta
	if newStart > len(w.data) {
		newStart = len(w.data)
	}
	newEnd := newStart + length
	if newEnd > len(w.data) {
		newEnd = len(w.data)
	}
	w.start, w.end = newStart, newEnd
	return nil
}

// Grow extends the window's end by extra bytes, bounded by both the
// underlying buffer's length and maxSize. The codec engine's actions do
// not call Grow.
func (w *FocusWindow) Grow(extra int) error {
	if extra < 0 {
		return fmt.Errorf("stream: window grow extra %d must be non-negative", extra)
	}
	newEnd := w.end + extra
	if limit := w.start + w.maxSize; newEnd > limit {
		newEnd = limit
	}
	if newEnd > len(w.data) {
		newEnd = len(w.data)
	}
	w.end = newEnd
	return nil
}

// AtEOF reports whether the window has consumed all available data and
// cannot shift any further.
func (w *FocusWindow) AtEOF() bool {
	return w.end >= len(w.data) && w.start >= len(w.data)
}
