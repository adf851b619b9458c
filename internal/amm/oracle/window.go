package oracle

import (
	"sync"

	"github.com/hxuan190/amm-engine/internal/domain"
)

// Window keeps the most recent observations of one pair in a fixed-size ring.
type Window struct {
	mu    sync.RWMutex
	buf   []domain.Observation
	start int
	size  int
}

func NewWindow(capacity int) *Window {
	if capacity < 2 {
		capacity = 2
	}
	return &Window{buf: make([]domain.Observation, capacity)}
}

// Push appends obs, evicting the oldest observation when full. Observations at or
// before the newest stored timestamp are ignored; timestamps are compared with
// wrapping arithmetic.
func (w *Window) Push(obs domain.Observation) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size > 0 {
		newest := w.buf[(w.start+w.size-1)%len(w.buf)]
		if d := obs.Timestamp - newest.Timestamp; d == 0 || d > 1<<31 {
			return false
		}
	}
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = obs
		w.size++
		return true
	}
	w.buf[w.start] = obs
	w.start = (w.start + 1) % len(w.buf)
	return true
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

func (w *Window) Capacity() int {
	return len(w.buf)
}

// Latest returns the newest observation.
func (w *Window) Latest() (domain.Observation, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.size == 0 {
		return domain.Observation{}, false
	}
	return w.buf[(w.start+w.size-1)%len(w.buf)], true
}

// All returns the stored observations oldest first.
func (w *Window) All() []domain.Observation {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]domain.Observation, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}
