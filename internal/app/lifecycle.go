package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/serialbridge/internal/domain"
	"github.com/bft-labs/serialbridge/pkg/log"
)

// State is the ingestion connection state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateConnected
	StateReading
	StateRecovering
	StateStopping
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateConnected:
		return "Connected"
	case StateReading:
		return "Reading"
	case StateRecovering:
		return "Recovering"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateStopped:    {StateStarting},
	StateStarting:   {StateConnected, StateRecovering, StateStopping},
	StateConnected:  {StateReading, StateRecovering, StateStopping},
	StateReading:    {StateRecovering, StateStopping},
	StateRecovering: {StateConnected, StateStopping},
	StateStopping:   {StateStopped},
}

// EventEmitter is called when the ingestion state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Status is a point-in-time view of the lifecycle for health reporting.
type Status struct {
	State     State
	Since     time.Time
	LastError string
}

// Lifecycle is the ingestion state machine.
// It outlives individual ingestor runs so that restarts keep one history.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	since        time.Time
	lastErr      string
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewLifecycle creates a lifecycle in StateStopped.
func NewLifecycle(logger log.Logger, emitter EventEmitter) *Lifecycle {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Lifecycle{
		state:        StateStopped,
		since:        time.Now(),
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Status returns the state, when it was entered and the last recorded error.
func (l *Lifecycle) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Status{State: l.state, Since: l.since, LastError: l.lastErr}
}

// TransitionTo moves to newState. Moving to the current state is a no-op.
// Returns an error wrapping domain.ErrInvalidTransition if the move is not allowed.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if oldState == newState {
		l.mu.Unlock()
		return nil
	}
	if !allowed(oldState, newState) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, oldState, newState)
	}
	l.state = newState
	l.since = time.Now()
	if newState == StateConnected {
		l.lastErr = ""
	}
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Debug("ingest state",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

// RecordError remembers err for health reporting until the next successful connect.
func (l *Lifecycle) RecordError(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	l.lastErr = err.Error()
	l.mu.Unlock()
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
