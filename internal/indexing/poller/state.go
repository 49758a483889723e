package poller

import "time"

// State is the poller's mutable control state. Transitions return a new
// value and never touch the receiver.
type State struct {
	Enabled   bool
	Interval  time.Duration
	LastRunAt time.Time
}

// Status is the externally visible poller state.
type Status struct {
	Running        bool  `json:"running"`
	PollIntervalMs int64 `json:"pollIntervalMs"`
}

// Start enables polling. Starting an enabled poller is a no-op.
func (s State) Start() State {
	s.Enabled = true
	return s
}

// Stop disables polling. An in-flight cycle is not interrupted.
func (s State) Stop() State {
	s.Enabled = false
	return s
}

// Ran records the start of a cycle.
func (s State) Ran(at time.Time) State {
	s.LastRunAt = at
	return s
}

// Status projects s to its external form.
func (s State) Status() Status {
	return Status{
		Running:        s.Enabled,
		PollIntervalMs: s.Interval.Milliseconds(),
	}
}
