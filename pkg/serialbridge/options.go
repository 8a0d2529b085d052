package serialbridge

import (
	"github.com/bft-labs/serialbridge/internal/ports"
	"github.com/bft-labs/serialbridge/pkg/log"
)

// PortOpener opens and lists serial ports. Inject one with WithPortOpener
// to run a bridge against a simulated device.
type PortOpener = ports.PortOpener

// SerialPort is an open serial connection returned by a PortOpener.
type SerialPort = ports.SerialPort

// OpenRequest describes the port a PortOpener should open.
type OpenRequest = ports.OpenRequest

// PortInfo describes a serial port found on the host.
type PortInfo = ports.PortInfo

// Option configures optional behavior of a Bridge.
type Option func(*options)

// options holds the optional configuration for a Bridge instance.
type options struct {
	logger       log.Logger
	eventHandler EventHandler
	opener       ports.PortOpener
	plugins      []Plugin
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for bridge events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPortOpener replaces the go.bug.st/serial based opener.
func WithPortOpener(opener PortOpener) Option {
	return func(o *options) {
		o.opener = opener
	}
}

// WithPlugin registers a plugin to be initialized when the bridge starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
