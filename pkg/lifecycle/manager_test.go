package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/serialbridge/pkg/log"
)

type recordingEmitter struct {
	mu          sync.Mutex
	transitions []string
}

func (r *recordingEmitter) OnStateChange(previous, current State, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, previous.String()+"->"+current.String())
}

func TestManager_TransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr error
	}{
		{"stopped to starting", StateStopped, StateStarting, nil},
		{"starting to running", StateStarting, StateRunning, nil},
		{"starting to crashed", StateStarting, StateCrashed, nil},
		{"running to stopping", StateRunning, StateStopping, nil},
		{"stopping to stopped", StateStopping, StateStopped, nil},
		{"crashed to starting", StateCrashed, StateStarting, nil},
		{"stopped to running", StateStopped, StateRunning, ErrNotRunning},
		{"running to starting", StateRunning, StateStarting, ErrAlreadyRunning},
		{"crashed to stopped", StateCrashed, StateStopped, ErrNotRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(log.NewNoopLogger(), nil)
			m.status.State = tt.from

			err := m.TransitionTo(tt.to, "test")
			if err != tt.wantErr {
				t.Fatalf("TransitionTo() error = %v, want %v", err, tt.wantErr)
			}
			want := tt.to
			if tt.wantErr != nil {
				want = tt.from
			}
			if m.State() != want {
				t.Errorf("state = %v, want %v", m.State(), want)
			}
		})
	}
}

func TestManager_CanStartCanStop(t *testing.T) {
	tests := []struct {
		state    State
		canStart bool
		canStop  bool
	}{
		{StateStopped, true, false},
		{StateStarting, false, true},
		{StateRunning, false, true},
		{StateStopping, false, false},
		{StateCrashed, true, false},
	}
	for _, tt := range tests {
		m := NewManager(nil, nil)
		m.status.State = tt.state
		if got := m.CanStart(); got != tt.canStart {
			t.Errorf("%v: CanStart() = %v, want %v", tt.state, got, tt.canStart)
		}
		if got := m.CanStop(); got != tt.canStop {
			t.Errorf("%v: CanStop() = %v, want %v", tt.state, got, tt.canStop)
		}
	}
}

func TestManager_EmitsEventsAndTracksSince(t *testing.T) {
	emitter := &recordingEmitter{}
	m := NewManager(log.NewNoopLogger(), emitter)

	before := m.Since()
	time.Sleep(2 * time.Millisecond)
	_ = m.TransitionTo(StateStarting, "start")
	_ = m.TransitionTo(StateRunning, "workers up")

	if !m.Since().After(before) {
		t.Error("Since() not updated on transition")
	}
	want := []string{"Stopped->Starting", "Starting->Running"}
	if len(emitter.transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", emitter.transitions, want)
	}
	for i := range want {
		if emitter.transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, emitter.transitions[i], want[i])
		}
	}
}

func TestManager_Cancel(t *testing.T) {
	m := NewManager(nil, nil)
	m.Cancel() // no cancel func set

	ctx, cancel := context.WithCancel(context.Background())
	m.SetCancel(cancel)
	m.Cancel()

	select {
	case <-ctx.Done():
	default:
		t.Error("Cancel() did not cancel the stored context")
	}
}

func TestManager_StatusKeepsReason(t *testing.T) {
	m := NewManager(nil, nil)
	if got := m.Status(); got.State != StateStopped || got.Reason != "created" {
		t.Errorf("initial Status() = %+v", got)
	}

	_ = m.TransitionTo(StateStarting, "Start() called")
	_ = m.TransitionTo(StateCrashed, "plugin init failed: watcher")
	if err := m.TransitionTo(StateStopped, "ignored"); err != ErrNotRunning {
		t.Fatalf("TransitionTo() = %v, want ErrNotRunning", err)
	}

	got := m.Status()
	if got.State != StateCrashed || got.Reason != "plugin init failed: watcher" {
		t.Errorf("Status() = %+v", got)
	}
}

func TestManager_WaitWithTimeout(t *testing.T) {
	m := NewManager(nil, nil)
	m.Go("quick", func() { time.Sleep(5 * time.Millisecond) })
	if err := m.WaitWithTimeout(time.Second); err != nil {
		t.Errorf("WaitWithTimeout() = %v, want nil", err)
	}
	if w := m.Workers(); len(w) != 0 {
		t.Errorf("Workers() = %v after exit, want none", w)
	}

	release := make(chan struct{})
	defer close(release)
	m.Go("ingest", func() { <-release })
	m.Go("http", func() { <-release })

	if err := m.WaitWithTimeout(10 * time.Millisecond); err != ErrShutdownTimeout {
		t.Errorf("WaitWithTimeout() = %v, want ErrShutdownTimeout", err)
	}
	if w := m.Workers(); len(w) != 2 || w[0] != "http" || w[1] != "ingest" {
		t.Errorf("Workers() = %v, want [http ingest]", w)
	}
}
