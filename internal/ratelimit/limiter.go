// Package ratelimit provides the sliding-window limiter used to throttle bot
// commands per connection.
package ratelimit

import (
	"sync"
	"time"
)

// Config configures a sliding window.
type Config struct {
	// Period is the length of the window.
	Period time.Duration `yaml:"period"`
	// Limit is the number of events accepted within one window.
	Limit int `yaml:"limit"`
}

// Window is a sliding-window limiter. Each check drops timestamps that have
// aged out of the window, so throttling has no reset edges.
type Window struct {
	mu     sync.Mutex
	config Config
	times  []time.Time
}

// NewWindow creates a window with the given thresholds.
func NewWindow(config Config) *Window {
	return &Window{
		config: config,
		times:  make([]time.Time, 0, max(config.Limit, 0)),
	}
}

// Allow reports whether an event at now fits in the window, recording it if
// so. Rejected events are not recorded.
func (w *Window) Allow(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	if len(w.times) >= w.config.Limit {
		return false
	}

	w.times = append(w.times, now)
	return true
}

// Count returns the number of recorded events still inside the window.
func (w *Window) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	return len(w.times)
}

// Config returns the current thresholds.
func (w *Window) Config() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.config
}

// SetConfig replaces the thresholds. Recorded history is kept and judged
// against the new values on the next check.
func (w *Window) SetConfig(config Config) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = config
}

// prune removes timestamps at least one period old (must be called with lock held).
func (w *Window) prune(now time.Time) {
	keep := 0
	for _, ts := range w.times {
		if now.Sub(ts) >= w.config.Period {
			continue
		}
		w.times[keep] = ts
		keep++
	}
	w.times = w.times[:keep]
}
