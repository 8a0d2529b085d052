package serialbridge

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/bft-labs/serialbridge/internal/app"
	"github.com/bft-labs/serialbridge/internal/domain"
	"github.com/bft-labs/serialbridge/internal/httpapi"
	"github.com/bft-labs/serialbridge/pkg/lifecycle"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultBaudRate     = 9600
	DefaultBufferSize   = app.DefaultBufferSize
	DefaultFlushTimeout = app.DefaultFlushTimeout
	DefaultReadTimeout  = app.DefaultReadTimeout

	DefaultReconnectInitial = app.DefaultBackoffInitial
	DefaultReconnectMax     = app.DefaultBackoffMax

	DefaultListenAddr      = ":5000"
	DefaultCORSOrigin      = httpapi.DefaultCORSOrigin
	DefaultShutdownTimeout = lifecycle.ShutdownTimeout
)

// CORSDisabled as CORSOrigin omits the Access-Control-Allow-Origin header.
const CORSDisabled = "none"

// Config holds the configuration of a Bridge.
type Config struct {
	// Port is the serial device name, e.g. /dev/ttyUSB0 or COM3.
	// An empty port is not rejected: the bridge serves HTTP and reports the
	// problem through /api/health until a port is configured.
	Port string

	// BaudRate is the serial line speed. Default: 9600
	BaudRate int

	// BufferSize is the pending byte count that flushes a frame. Default: 60
	BufferSize int

	// FlushTimeout flushes a non-empty pending buffer this long after its first byte.
	// Default: 2s
	FlushTimeout time.Duration

	// ReadTimeout bounds each serial read. Default: 100ms
	ReadTimeout time.Duration

	// ReconnectInitial and ReconnectMax bound the reconnect backoff.
	// Defaults: 500ms and 10s
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	// Pattern, when set, reduces each frame to the concatenation of its matches.
	// Frames without a match are dropped.
	Pattern string

	// ListenAddr is the HTTP listen address. Default: :5000
	ListenAddr string

	// CORSOrigin is sent as Access-Control-Allow-Origin; CORSDisabled omits
	// the header. Default: *
	CORSOrigin string

	// ShutdownTimeout bounds each shutdown phase. Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultPort returns the conventional first serial port of the platform.
func DefaultPort() string {
	if runtime.GOOS == "windows" {
		return "COM1"
	}
	return "/dev/ttyUSB0"
}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() Config {
	cfg := Config{Port: DefaultPort()}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero-valued fields with defaults. Port is left as is.
func (c *Config) SetDefaults() {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.FlushTimeout == 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ReconnectInitial == 0 {
		c.ReconnectInitial = DefaultReconnectInitial
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = DefaultReconnectMax
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.CORSOrigin == "" {
		c.CORSOrigin = DefaultCORSOrigin
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate reports structural configuration errors, wrapped in ErrInvalidConfig.
// Serial settings the device may reject (port name, baud rate) are checked at
// connect time instead, so a bad port never prevents the HTTP surface from starting.
func (c Config) Validate() error {
	switch {
	case c.BufferSize < 1:
		return fmt.Errorf("%w: buffer size must be positive, got %d", domain.ErrInvalidConfig, c.BufferSize)
	case c.FlushTimeout <= 0:
		return fmt.Errorf("%w: flush timeout must be positive", domain.ErrInvalidConfig)
	case c.ReadTimeout <= 0:
		return fmt.Errorf("%w: read timeout must be positive", domain.ErrInvalidConfig)
	case c.ReconnectInitial <= 0:
		return fmt.Errorf("%w: reconnect initial delay must be positive", domain.ErrInvalidConfig)
	case c.ReconnectMax < c.ReconnectInitial:
		return fmt.Errorf("%w: reconnect max %v is below initial %v", domain.ErrInvalidConfig, c.ReconnectMax, c.ReconnectInitial)
	case strings.TrimSpace(c.ListenAddr) == "":
		return fmt.Errorf("%w: listen address is required", domain.ErrInvalidConfig)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: shutdown timeout must be positive", domain.ErrInvalidConfig)
	}

	if c.Pattern != "" {
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return fmt.Errorf("%w: pattern: %w", domain.ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c Config) apiConfig() httpapi.Config {
	origin := c.CORSOrigin
	if origin == CORSDisabled {
		origin = ""
	}
	return httpapi.Config{CORSOrigin: origin}
}

func (c Config) ingestConfig() app.IngestConfig {
	return app.IngestConfig{
		Port:           c.Port,
		BaudRate:       c.BaudRate,
		BufferSize:     c.BufferSize,
		FlushTimeout:   c.FlushTimeout,
		ReadTimeout:    c.ReadTimeout,
		BackoffInitial: c.ReconnectInitial,
		BackoffMax:     c.ReconnectMax,
		Pattern:        c.Pattern,
	}
}
