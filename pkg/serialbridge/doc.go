// Package serialbridge provides an embeddable bridge from a serial device to HTTP.
//
// A Bridge reads bytes from a serial port, groups them into frames when either
// BufferSize bytes have accumulated or FlushTimeout has passed since the first
// pending byte, and publishes each frame into two slots: the current reading
// and the most recent reading whose text differed from its predecessor. The
// slots are served over HTTP:
//
//	GET /api/current
//	GET /api/last_changed
//	GET /api/health
//	GET /api/ports
//	GET /metrics
//
// # Basic Usage
//
//	cfg := serialbridge.DefaultConfig()
//	cfg.Port = "/dev/ttyUSB0"
//	cfg.BaudRate = 9600
//
//	bridge, err := serialbridge.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := bridge.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := bridge.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Failure Handling
//
// The serial side never stops the bridge. When the port is missing,
// unplugged or misconfigured, ingestion moves to [IngestionRecovering], logs
// the available ports and reconnects with exponential backoff while the HTTP
// API keeps serving the last published readings.
//
// # Events and Plugins
//
// Implement [EventHandler] (embedding [BaseEventHandler]) and pass it via
// [WithEventHandler] to observe frames and state changes. Plugins registered
// with [WithPlugin] are initialized on Start and may call
// [Bridge.Reconfigure], which restarts ingestion without losing readings:
//
//	import "github.com/bft-labs/serialbridge/plugins/configwatcher"
//
//	bridge, err := serialbridge.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{Path: path, Reload: reload}),
//	)
package serialbridge
