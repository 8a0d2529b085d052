package domain

import "time"

// Frame is one completed unit of device data.
// Frames are produced by the assembler and never modified afterwards.
type Frame struct {
	// Text is the decoded payload with framing whitespace trimmed
	Text string

	// ReceivedAt is when the frame was flushed from the pending buffer
	ReceivedAt time.Time
}

// Slot is a published reading as seen by readers.
// The zero Slot is absent.
type Slot struct {
	Frame Frame

	// Present is false until the first publish into this slot
	Present bool

	// UpdatedAt is the time of the publish that filled the slot
	UpdatedAt time.Time

	// Seq is the sequence number of the publish that filled the slot, starting at 1
	Seq uint64
}

// Value returns the slot text, or "" if the slot is absent.
func (s Slot) Value() string {
	if !s.Present {
		return ""
	}
	return s.Frame.Text
}

// Snapshot is a consistent copy of both published slots.
type Snapshot struct {
	Current     Slot
	LastChanged Slot

	// Published counts every publish, Changes counts publishes flagged as changed
	Published uint64
	Changes   uint64
}
