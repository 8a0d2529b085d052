package app

import "github.com/bft-labs/serialbridge/internal/domain"

// Classify reports whether next is a change relative to the previous current slot.
// The first frame after startup (absent previous) is always a change.
func Classify(next domain.Frame, previous domain.Slot) bool {
	if !previous.Present {
		return true
	}
	return previous.Frame.Text != next.Text
}
