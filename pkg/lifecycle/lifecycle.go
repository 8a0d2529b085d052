package lifecycle

import "time"

// State is the run state of a bridge instance.
// It is independent of the serial connection: a bridge is Running while its
// ingestion loop waits for a device.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when the run state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager manages the run state machine of a bridge.
type Manager interface {
	State() State
	Since() time.Time
	Status() Status

	// CanStart reports whether the bridge is Stopped or Crashed.
	CanStart() bool

	// CanStop reports whether the bridge is Starting or Running.
	CanStop() bool

	TransitionTo(next State, reason string) error

	// Go starts a named worker goroutine for the current run.
	Go(name string, fn func())

	// WaitWithTimeout waits for all workers; ErrShutdownTimeout on expiry.
	WaitWithTimeout(timeout time.Duration) error
}
