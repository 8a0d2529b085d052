package configwatcher

import "github.com/bft-labs/serialbridge/pkg/serialbridge"

// WithConfigWatcher returns a serialbridge Option that reloads the bridge
// whenever cfg.Path is written.
//
// Usage:
//
//	b, err := serialbridge.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path: path,
//	        Load: func() (serialbridge.Config, error) { return loadFrom(path) },
//	    }),
//	)
func WithConfigWatcher(cfg Config) serialbridge.Option {
	return serialbridge.WithPlugin(New(cfg))
}
