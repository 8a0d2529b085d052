// Package serialbridge serves the latest reading of a serial measurement
// device over HTTP.
//
// Run is the one-call entry point; use pkg/serialbridge directly for
// event handlers, plugins or Reconfigure.
//
// Example usage:
//
//	cfg := serialbridge.DefaultConfig()
//	cfg.Port = "/dev/ttyUSB0"
//	if err := serialbridge.Run(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
package serialbridge

import (
	"context"

	bridge "github.com/bft-labs/serialbridge/pkg/serialbridge"
)

// Config is the bridge configuration.
type Config = bridge.Config

// Reading is a published value as returned by the bridge.
type Reading = bridge.Reading

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return bridge.DefaultConfig()
}

// Run starts a bridge and blocks until ctx is canceled, then stops it.
func Run(ctx context.Context, cfg Config, opts ...bridge.Option) error {
	b, err := bridge.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := b.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return b.Stop()
}
