package domain

import "errors"

// Domain errors represent error conditions in the serialbridge domain.
// These errors are returned or wrapped by the public API and can be checked with errors.Is.
var (
	// ErrConnection wraps failures to open or read the serial port.
	// Always recoverable: the ingestor backs off and reconnects.
	ErrConnection = errors.New("serialbridge: connection error")

	// ErrDecode is returned when a flushed buffer is not valid UTF-8.
	// The frame is discarded and ingestion continues.
	ErrDecode = errors.New("serialbridge: decode error")

	// ErrConfiguration is returned for unusable serial settings (no port, bad baud).
	// Reported at startup; the HTTP surface still comes up.
	ErrConfiguration = errors.New("serialbridge: configuration error")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("serialbridge: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("serialbridge: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("serialbridge: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("serialbridge: invalid configuration")

	// ErrInvalidTransition is returned when the ingestion state machine rejects a transition.
	ErrInvalidTransition = errors.New("serialbridge: invalid state transition")
)
