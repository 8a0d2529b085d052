package serialbridge

import "github.com/bft-labs/serialbridge/internal/domain"

// Errors returned or wrapped by the bridge. Check them with errors.Is.
var (
	ErrConnection      = domain.ErrConnection
	ErrDecode          = domain.ErrDecode
	ErrConfiguration   = domain.ErrConfiguration
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
)
