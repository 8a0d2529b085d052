package serialbridge

import (
	"time"

	"github.com/bft-labs/serialbridge/internal/app"
	"github.com/bft-labs/serialbridge/internal/domain"
	"github.com/bft-labs/serialbridge/pkg/lifecycle"
)

// State is the run state of a Bridge.
type State = lifecycle.State

// RunStatus is a run state with its entry time and reason.
type RunStatus = lifecycle.Status

// Run states.
const (
	StateStopped  = lifecycle.StateStopped
	StateStarting = lifecycle.StateStarting
	StateRunning  = lifecycle.StateRunning
	StateStopping = lifecycle.StateStopping
	StateCrashed  = lifecycle.StateCrashed
)

// IngestionState is the state of the serial connection.
type IngestionState string

// Ingestion states.
const (
	IngestionStopped    IngestionState = "Stopped"
	IngestionStarting   IngestionState = "Starting"
	IngestionConnected  IngestionState = "Connected"
	IngestionReading    IngestionState = "Reading"
	IngestionRecovering IngestionState = "Recovering"
	IngestionStopping   IngestionState = "Stopping"
)

// StateChangeEvent reports a run state transition of the bridge.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// IngestionStateEvent reports a serial connection state transition.
type IngestionStateEvent struct {
	Previous IngestionState
	Current  IngestionState
	Reason   string
}

// FrameEvent reports a published frame.
type FrameEvent struct {
	Reading Reading
	Changed bool
}

// DecodeErrorEvent reports a frame discarded because it was not valid UTF-8.
type DecodeErrorEvent struct {
	Error error
}

// EventHandler receives bridge notifications.
// Methods are called synchronously from the bridge goroutines and should
// return quickly; a slow handler delays ingestion. Handlers must not call
// Stop or Reconfigure.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnIngestionStateChange(event IngestionStateEvent)
	OnFrame(event FrameEvent)
	OnDecodeError(event DecodeErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops.
// Embed it to handle only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)             {}
func (BaseEventHandler) OnIngestionStateChange(IngestionStateEvent) {}
func (BaseEventHandler) OnFrame(FrameEvent)                         {}
func (BaseEventHandler) OnDecodeError(DecodeErrorEvent)             {}

// Reading is a published slot as seen through the public API.
type Reading struct {
	// Available is false until the slot is first written
	Available  bool
	Value      string
	ReceivedAt time.Time
	UpdatedAt  time.Time
	Seq        uint64
}

func newReading(slot domain.Slot) Reading {
	if !slot.Present {
		return Reading{}
	}
	return Reading{
		Available:  true,
		Value:      slot.Frame.Text,
		ReceivedAt: slot.Frame.ReceivedAt,
		UpdatedAt:  slot.UpdatedAt,
		Seq:        slot.Seq,
	}
}

// runEmitter adapts EventHandler to lifecycle.EventEmitter.
type runEmitter struct {
	handler EventHandler
}

func (e runEmitter) OnStateChange(previous, current lifecycle.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}

// ingestEmitter adapts EventHandler to the ingestion emitters.
type ingestEmitter struct {
	handler EventHandler
}

func (e ingestEmitter) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnIngestionStateChange(IngestionStateEvent{
		Previous: IngestionState(previous.String()),
		Current:  IngestionState(current.String()),
		Reason:   reason,
	})
}

func (e ingestEmitter) OnFrame(slot domain.Slot, changed bool) {
	if e.handler == nil {
		return
	}
	e.handler.OnFrame(FrameEvent{Reading: newReading(slot), Changed: changed})
}

func (e ingestEmitter) OnDecodeError(err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnDecodeError(DecodeErrorEvent{Error: err})
}
