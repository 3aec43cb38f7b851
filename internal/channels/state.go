package channels

import (
	"sync"
	"time"
)

// ConnState is the lifecycle state of a backend connection.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Status is a snapshot of a connection's health.
type Status struct {
	State             ConnState `json:"-"`
	StateName         string    `json:"state"`
	Since             time.Time `json:"since"`
	Error             string    `json:"error,omitempty"`
	LastPing          time.Time `json:"last_ping,omitempty"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
}

// Connected reports whether the snapshot is in the connected state.
func (s Status) Connected() bool {
	return s.State == StateConnected
}

// StateTracker records connection state transitions. OnChange, when set, is
// called with each new state outside the tracker's lock.
type StateTracker struct {
	OnChange func(ConnState)

	mu       sync.Mutex
	state    ConnState
	since    time.Time
	lastErr  string
	lastPing time.Time
	attempts int
	now      func() time.Time
}

// NewStateTracker returns a tracker in the disconnected state.
func NewStateTracker() *StateTracker {
	return &StateTracker{now: time.Now, since: time.Now()}
}

// State returns the current state.
func (t *StateTracker) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Set moves to state unconditionally.
func (t *StateTracker) Set(state ConnState) {
	t.mu.Lock()
	changed := t.setLocked(state)
	t.mu.Unlock()
	if changed {
		t.notify(state)
	}
}

// Transition moves from one state to another only when the current state is
// from. It reports whether the transition happened.
func (t *StateTracker) Transition(from, to ConnState) bool {
	t.mu.Lock()
	if t.state != from {
		t.mu.Unlock()
		return false
	}
	changed := t.setLocked(to)
	t.mu.Unlock()
	if changed {
		t.notify(to)
	}
	return true
}

// Fail records err and moves to the disconnected state.
func (t *StateTracker) Fail(err error) {
	t.mu.Lock()
	if err != nil {
		t.lastErr = err.Error()
	}
	changed := t.setLocked(StateDisconnected)
	t.mu.Unlock()
	if changed {
		t.notify(StateDisconnected)
	}
}

// RecordPing stores the time of the last successful liveness probe.
func (t *StateTracker) RecordPing() {
	t.mu.Lock()
	t.lastPing = t.clock()
	t.mu.Unlock()
}

// RecordReconnectAttempt counts a reconnect attempt.
func (t *StateTracker) RecordReconnectAttempt() {
	t.mu.Lock()
	t.attempts++
	t.mu.Unlock()
}

// Status returns a snapshot of the tracked state.
func (t *StateTracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		State:             t.state,
		StateName:         t.state.String(),
		Since:             t.since,
		Error:             t.lastErr,
		LastPing:          t.lastPing,
		ReconnectAttempts: t.attempts,
	}
}

func (t *StateTracker) setLocked(state ConnState) bool {
	if t.state == state {
		return false
	}
	t.state = state
	t.since = t.clock()
	if state == StateConnected {
		t.lastErr = ""
	}
	return true
}

func (t *StateTracker) clock() time.Time {
	if t.now == nil {
		return time.Now()
	}
	return t.now()
}

func (t *StateTracker) notify(state ConnState) {
	if t.OnChange != nil {
		t.OnChange(state)
	}
}
