package lifecycle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/serialbridge/internal/domain"
	"github.com/bft-labs/serialbridge/pkg/log"
)

// Errors returned by TransitionTo and WaitWithTimeout.
var (
	ErrNotRunning      = domain.ErrNotRunning
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
)

// ShutdownTimeout is the default bound for WaitWithTimeout.
const ShutdownTimeout = 10 * time.Second

// runTransitions lists the states reachable from each run state.
var runTransitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// Status is the run state together with when and why it was entered.
type Status struct {
	State  State
	Since  time.Time
	Reason string
}

// RunManager tracks one bridge's run state and the goroutines started for a run.
type RunManager struct {
	mu      sync.RWMutex
	status  Status
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers map[string]int

	logger  log.Logger
	emitter EventEmitter
}

var _ Manager = (*RunManager)(nil)

// NewManager creates a manager in StateStopped. emitter may be nil.
func NewManager(logger log.Logger, emitter EventEmitter) *RunManager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &RunManager{
		status:  Status{State: StateStopped, Since: time.Now(), Reason: "created"},
		workers: make(map[string]int),
		logger:  logger,
		emitter: emitter,
	}
}

func (m *RunManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.State
}

func (m *RunManager) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Since
}

// Status returns the current state with its entry time and reason.
func (m *RunManager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// TransitionTo moves to next and records reason.
// Leaving Stopped or Crashed for anything but Starting yields ErrNotRunning;
// any other disallowed move yields ErrAlreadyRunning.
func (m *RunManager) TransitionTo(next State, reason string) error {
	m.mu.Lock()
	prev := m.status.State
	if !canMove(prev, next) {
		m.mu.Unlock()
		if prev == StateStopped || prev == StateCrashed {
			return ErrNotRunning
		}
		return ErrAlreadyRunning
	}
	m.status = Status{State: next, Since: time.Now(), Reason: reason}
	m.mu.Unlock()

	if m.emitter != nil {
		m.emitter.OnStateChange(prev, next, reason)
	}

	m.logger.Info("bridge state transition",
		log.String("from", prev.String()),
		log.String("to", next.String()),
		log.String("reason", reason),
	)
	return nil
}

func (m *RunManager) CanStart() bool {
	s := m.State()
	return s == StateStopped || s == StateCrashed
}

func (m *RunManager) CanStop() bool {
	s := m.State()
	return s == StateRunning || s == StateStarting
}

// SetCancel stores the cancel function of the current run's context.
func (m *RunManager) SetCancel(cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancel = cancel
}

// Cancel cancels the current run's context, if any.
func (m *RunManager) Cancel() {
	m.mu.RLock()
	cancel := m.cancel
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
}

// Go runs fn in a goroutine counted by WaitWithTimeout under name.
func (m *RunManager) Go(name string, fn func()) {
	m.wg.Add(1)
	m.mu.Lock()
	m.workers[name]++
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			if m.workers[name]--; m.workers[name] <= 0 {
				delete(m.workers, name)
			}
			m.mu.Unlock()
		}()
		fn()
	}()
}

// Workers returns the names of goroutines still running, sorted.
func (m *RunManager) Workers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.workers))
	for name := range m.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WaitWithTimeout waits for every goroutine started with Go.
// On timeout it logs the ones still running and returns ErrShutdownTimeout.
func (m *RunManager) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-done:
		return nil
	case <-t.C:
		m.logger.Warn("shutdown timeout, abandoning workers",
			log.Duration("timeout", timeout),
			log.Any("workers", m.Workers()),
		)
		return ErrShutdownTimeout
	}
}

func canMove(from, to State) bool {
	for _, s := range runTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
