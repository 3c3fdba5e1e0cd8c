package fusion

import "github.com/pscheid92/emofusion/internal/domain"

const (
	// DefaultWindowCapacity bounds the history used for multi-modal fusion.
	DefaultWindowCapacity = 50
	// DisplayHistoryCapacity bounds single-modality display history.
	DisplayHistoryCapacity = 30
)

// Window is a fixed-capacity FIFO ring of samples in insertion (time) order.
// It is not safe for concurrent use.
type Window struct {
	buf   []domain.ModalitySample
	start int
	size  int
}

// NewWindow creates an empty window. Capacities below 1 are raised to 1.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]domain.ModalitySample, capacity)}
}

func (w *Window) Len() int { return w.size }
func (w *Window) Cap() int { return len(w.buf) }

// Append adds s as the newest sample, evicting the oldest when full.
func (w *Window) Append(s domain.ModalitySample) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = s
		w.size++
		return
	}
	w.buf[w.start] = s
	w.start = (w.start + 1) % len(w.buf)
}

// At returns the i-th sample, 0 being the oldest.
func (w *Window) At(i int) domain.ModalitySample {
	return w.buf[(w.start+i)%len(w.buf)]
}

// Latest returns the newest sample.
func (w *Window) Latest() (domain.ModalitySample, bool) {
	if w.size == 0 {
		return domain.ModalitySample{}, false
	}
	return w.At(w.size - 1), true
}

// Tail copies the newest min(n, Len()) samples, oldest first.
func (w *Window) Tail(n int) []domain.ModalitySample {
	if n > w.size {
		n = w.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]domain.ModalitySample, n)
	offset := w.size - n
	for i := range out {
		out[i] = w.At(offset + i)
	}
	return out
}

// Samples copies the whole window, oldest first.
func (w *Window) Samples() []domain.ModalitySample {
	return w.Tail(w.size)
}

// Reset drops every sample.
func (w *Window) Reset() {
	clear(w.buf)
	w.start, w.size = 0, 0
}
