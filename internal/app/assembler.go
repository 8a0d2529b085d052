package app

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bft-labs/serialbridge/internal/domain"
)

// Default flush policy values.
const (
	DefaultBufferSize   = 60
	DefaultFlushTimeout = 2 * time.Second
)

// Assembler accumulates raw bytes into frames using a size-or-timeout policy.
// It is not safe for concurrent use; the ingestor owns it.
type Assembler struct {
	maxBytes  int
	timeout   time.Duration
	buf       []byte
	startedAt time.Time
	now       func() time.Time
}

// NewAssembler creates an assembler flushing at maxBytes or after timeout.
// Non-positive values fall back to the defaults.
func NewAssembler(maxBytes int, timeout time.Duration) *Assembler {
	if maxBytes <= 0 {
		maxBytes = DefaultBufferSize
	}
	if timeout <= 0 {
		timeout = DefaultFlushTimeout
	}
	return &Assembler{
		maxBytes: maxBytes,
		timeout:  timeout,
		buf:      make([]byte, 0, maxBytes),
		now:      time.Now,
	}
}

// Feed appends p to the pending buffer and flushes if either trigger fires.
// An oversized p is flushed whole in a single frame.
// The returned error wraps domain.ErrDecode when the flushed bytes are not valid UTF-8.
func (a *Assembler) Feed(p []byte) (domain.Frame, bool, error) {
	if len(p) == 0 {
		return a.Poll()
	}
	if len(a.buf) == 0 {
		a.startedAt = a.now()
	}
	a.buf = append(a.buf, p...)

	if len(a.buf) >= a.maxBytes || a.expired() {
		return a.flush()
	}
	return domain.Frame{}, false, nil
}

// Poll flushes the pending buffer if the timeout elapsed since its first byte.
func (a *Assembler) Poll() (domain.Frame, bool, error) {
	if len(a.buf) == 0 || !a.expired() {
		return domain.Frame{}, false, nil
	}
	return a.flush()
}

// Pending returns the number of buffered bytes.
func (a *Assembler) Pending() int {
	return len(a.buf)
}

// Reset drops buffered bytes without emitting a frame.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.startedAt = time.Time{}
}

func (a *Assembler) expired() bool {
	return a.now().Sub(a.startedAt) >= a.timeout
}

// flush always resets the buffer, including when decoding fails.
func (a *Assembler) flush() (domain.Frame, bool, error) {
	raw := a.buf
	n := len(raw)
	valid := utf8.Valid(raw)
	text := strings.TrimSpace(string(raw))

	a.buf = make([]byte, 0, a.maxBytes)
	a.startedAt = time.Time{}

	if !valid {
		return domain.Frame{}, false, fmt.Errorf("%w: %d bytes are not valid UTF-8", domain.ErrDecode, n)
	}
	if text == "" {
		return domain.Frame{}, false, nil
	}
	return domain.Frame{Text: text, ReceivedAt: a.now()}, true, nil
}
