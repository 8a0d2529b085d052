package serialbridge

import (
	"context"
	"fmt"

	"github.com/bft-labs/serialbridge/pkg/log"
)

// Plugin extends a Bridge with optional behavior.
// Plugins are initialized by Start in registration order and shut down by
// Stop in reverse order.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// Controller is the part of a Bridge that plugins may drive.
type Controller interface {
	Config() Config
	Reconfigure(cfg Config) error
	Status() State
}

// PluginConfig is passed to Plugin.Initialize.
type PluginConfig struct {
	Config Config
	Logger log.Logger
	Bridge Controller
}

// BasePlugin implements Plugin with no-ops. Embed it and override what you need.
type BasePlugin struct{}

func (BasePlugin) Name() string                                  { return "base" }
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (BasePlugin) Shutdown(context.Context) error                 { return nil }

// initPlugin calls p.Initialize, converting a panic into an error.
func initPlugin(ctx context.Context, p Plugin, cfg PluginConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked during initialization: %v", p.Name(), r)
		}
	}()
	return p.Initialize(ctx, cfg)
}

// shutdownPlugin calls p.Shutdown, converting a panic into an error.
func shutdownPlugin(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked during shutdown: %v", p.Name(), r)
		}
	}()
	return p.Shutdown(ctx)
}
