package telemetry

import "sync"

// availabilityWindow is the number of recent ping outcomes tracked.
const availabilityWindow = 20

// Window is a fixed-size record of recent outcomes, newest last.
//
// All methods are safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	size    int
	history []bool
}

// NewWindow returns a window holding at most size outcomes.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, history: make([]bool, 0, size)}
}

// Record appends an outcome, dropping the oldest when full.
func (w *Window) Record(ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.history) >= w.size {
		w.history = w.history[1:]
	}
	w.history = append(w.history, ok)
}

// Ratio returns the share of successful outcomes in [0, 1]. An empty window
// reports 1: the API is assumed up before the first observation.
func (w *Window) Ratio() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.history) == 0 {
		return 1
	}
	var ok int
	for _, s := range w.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(w.history))
}
