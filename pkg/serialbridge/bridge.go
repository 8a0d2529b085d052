package serialbridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	serialadapter "github.com/bft-labs/serialbridge/internal/adapters/serial"
	"github.com/bft-labs/serialbridge/internal/app"
	"github.com/bft-labs/serialbridge/internal/domain"
	"github.com/bft-labs/serialbridge/internal/httpapi"
	"github.com/bft-labs/serialbridge/internal/ports"
	"github.com/bft-labs/serialbridge/pkg/lifecycle"
	"github.com/bft-labs/serialbridge/pkg/log"
)

// Bridge reads a serial device and serves its latest readings over HTTP.
// Use New() to create an instance, then Start() to open the port and listen.
type Bridge struct {
	opts      options
	manager   *lifecycle.RunManager
	ingestion *app.Lifecycle
	store     *app.Store
	opener    ports.PortOpener
	logger    log.Logger
	emitter   ingestEmitter
	api       *httpapi.Server
	plugins   []Plugin

	mu       sync.RWMutex
	config   Config
	runCtx   context.Context
	ingest   *ingestRun
	lastRun  *ingestRun
	server   *http.Server
	listener net.Listener
}

// ingestRun is one ingestion goroutine.
type ingestRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Bridge with the given configuration.
// The instance is created in StateStopped; call Start() to begin.
// Returns an error wrapping ErrInvalidConfig if the configuration is invalid.
func New(cfg Config, opts ...Option) (*Bridge, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	opener := o.opener
	if opener == nil {
		opener = serialadapter.NewOpener()
	}

	b := &Bridge{
		opts:    o,
		manager: lifecycle.NewManager(logger, runEmitter{handler: o.eventHandler}),
		store:   app.NewStore(),
		opener:  opener,
		logger:  logger,
		emitter: ingestEmitter{handler: o.eventHandler},
		plugins: o.plugins,
		config:  cfg,
	}
	b.ingestion = app.NewLifecycle(logger.With(log.String("component", "ingest")), b.emitter)
	b.api = b.newAPI()
	return b, nil
}

// newAPI builds the query service from the current config.
func (b *Bridge) newAPI() *httpapi.Server {
	return httpapi.New(apiSource{b}, b.opener, b.config.apiConfig(), b.logger.With(log.String("component", "http")))
}

// Start opens the HTTP listener and starts ingestion in the background.
// It returns once the listener is bound; the serial port may still be absent.
// Returns ErrAlreadyRunning if the bridge is running.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.manager.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := b.manager.TransitionTo(lifecycle.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.runCtx = runCtx
	b.manager.SetCancel(cancel)

	pluginCfg := PluginConfig{
		Config: b.config,
		Logger: b.logger,
		Bridge: b,
	}
	for i, p := range b.plugins {
		if err := initPlugin(runCtx, p, pluginCfg); err != nil {
			b.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			b.shutdownPlugins(b.plugins[:i], b.config.ShutdownTimeout)
			b.abortStart(cancel, "plugin init failed: "+p.Name())
			return err
		}
		b.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	b.api = b.newAPI()
	ln, err := net.Listen("tcp", b.config.ListenAddr)
	if err != nil {
		b.shutdownPlugins(b.plugins, b.config.ShutdownTimeout)
		b.abortStart(cancel, "listen failed")
		return fmt.Errorf("listen %s: %w", b.config.ListenAddr, err)
	}
	b.listener = ln
	api := b.api
	srv := api.HTTPServer()
	b.server = srv

	b.manager.Go("http", func() {
		if err := api.Serve(srv, ln); err != nil {
			b.logger.Error("http api stopped", log.Err(err))
		}
	})

	if err := b.startIngestLocked(runCtx); err != nil {
		_ = srv.Close()
		b.shutdownPlugins(b.plugins, b.config.ShutdownTimeout)
		b.abortStart(cancel, "ingestor failed to start")
		return err
	}

	return b.manager.TransitionTo(lifecycle.StateRunning, "listening on "+ln.Addr().String())
}

func (b *Bridge) abortStart(cancel context.CancelFunc, reason string) {
	cancel()
	_ = b.manager.TransitionTo(lifecycle.StateCrashed, reason)
}

// startIngestLocked starts an ingestion goroutine with the current config.
// The goroutine does not run the ingestor until the previous run has exited,
// so at most one ingestor drives the ingestion lifecycle at a time.
// b.mu must be held.
func (b *Bridge) startIngestLocked(ctx context.Context) error {
	in, err := app.NewIngestor(
		b.config.ingestConfig(),
		b.opener,
		b.store,
		b.ingestion,
		b.logger.With(log.String("component", "ingest")),
		b.emitter,
	)
	if err != nil {
		return err
	}

	ingestCtx, cancel := context.WithCancel(ctx)
	run := &ingestRun{cancel: cancel, done: make(chan struct{})}
	prev := b.lastRun
	b.ingest = run
	b.lastRun = run

	b.manager.Go("ingest", func() {
		defer close(run.done)
		if prev != nil {
			<-prev.done
		}
		if ingestCtx.Err() != nil {
			return
		}
		if err := in.Run(ingestCtx); err != nil && !errors.Is(err, context.Canceled) {
			b.ingestion.RecordError(err)
			b.logger.Error("ingestion stopped", log.Err(err))
		}
	})
	return nil
}

// stopIngest cancels run and waits for it to exit.
func stopIngest(run *ingestRun, timeout time.Duration) error {
	if run == nil {
		return nil
	}
	run.cancel()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-run.done:
		return nil
	case <-t.C:
		return domain.ErrShutdownTimeout
	}
}

// Stop cancels ingestion, waits up to ShutdownTimeout for it to exit, then
// shuts the HTTP server down gracefully with the same bound.
// Returns nil on graceful shutdown, ErrShutdownTimeout if a phase timed out,
// and ErrNotRunning if the bridge is not running.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if !b.manager.CanStop() {
		b.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := b.manager.TransitionTo(lifecycle.StateStopping, "Stop() called"); err != nil {
		b.mu.Unlock()
		return err
	}
	run := b.ingest
	srv := b.server
	timeout := b.config.ShutdownTimeout
	b.ingest = nil
	b.server = nil
	b.listener = nil
	b.mu.Unlock()

	var result error
	if err := stopIngest(run, timeout); err != nil {
		b.logger.Warn("ingestion did not stop in time", log.Duration("timeout", timeout))
		result = err
	}

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := srv.Shutdown(ctx)
		cancel()
		if err != nil {
			b.logger.Warn("http shutdown incomplete", log.Err(err))
			_ = srv.Close()
			if result == nil {
				result = domain.ErrShutdownTimeout
			}
		}
	}

	b.manager.Cancel()
	if err := b.manager.WaitWithTimeout(timeout); err != nil && result == nil {
		result = err
	}

	b.shutdownPlugins(b.plugins, timeout)

	if result != nil {
		_ = b.manager.TransitionTo(lifecycle.StateCrashed, "shutdown timeout")
	} else {
		_ = b.manager.TransitionTo(lifecycle.StateStopped, "graceful shutdown")
	}
	return result
}

// shutdownPlugins shuts plugins down in reverse order, each bounded by timeout.
func (b *Bridge) shutdownPlugins(plugins []Plugin, timeout time.Duration) {
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := shutdownPlugin(ctx, p)
		cancel()
		if err != nil {
			b.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			continue
		}
		b.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
	}
}

// Reconfigure replaces the configuration. On a running bridge the ingestion
// goroutine is restarted with the new serial settings; published readings are
// kept. ListenAddr and CORSOrigin are stored but only take effect on the
// next Start.
func (b *Bridge) Reconfigure(cfg Config) error {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.config
	running := b.manager.State() == lifecycle.StateRunning
	if running && (cfg.ListenAddr != old.ListenAddr || cfg.CORSOrigin != old.CORSOrigin) {
		b.logger.Warn("listen address and CORS origin changes apply after restart",
			log.String("listen", cfg.ListenAddr),
			log.String("cors_origin", cfg.CORSOrigin))
	}
	b.config = cfg

	if !running || cfg.ingestConfig() == old.ingestConfig() {
		return nil
	}

	b.logger.Info("restarting ingestion with new settings",
		log.String("port", cfg.Port),
		log.Int("baud", cfg.BaudRate),
	)
	if err := stopIngest(b.ingest, cfg.ShutdownTimeout); err != nil {
		b.logger.Warn("previous ingestor still exiting, new settings start once it does",
			log.Duration("timeout", cfg.ShutdownTimeout))
	}
	b.ingest = nil
	return b.startIngestLocked(b.runCtx)
}

// Config returns the current configuration.
func (b *Bridge) Config() Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// Status returns the current run state.
// Safe to call concurrently from any goroutine.
func (b *Bridge) Status() State {
	return b.manager.State()
}

// RunStatus returns the run state with when and why it was entered,
// e.g. the failing plugin after a crashed Start.
func (b *Bridge) RunStatus() RunStatus {
	return b.manager.Status()
}

// IngestionStatus describes the serial connection.
type IngestionStatus struct {
	State     IngestionState
	Since     time.Time
	LastError string
	Port      string
	BaudRate  int
}

// Ingestion returns the serial connection status.
func (b *Bridge) Ingestion() IngestionStatus {
	st := b.ingestion.Status()
	cfg := b.Config()
	return IngestionStatus{
		State:     IngestionState(st.State.String()),
		Since:     st.Since,
		LastError: st.LastError,
		Port:      cfg.Port,
		BaudRate:  cfg.BaudRate,
	}
}

// Current returns the most recent reading.
func (b *Bridge) Current() Reading {
	return newReading(b.store.Current())
}

// LastChanged returns the most recent reading that differed from its predecessor.
func (b *Bridge) LastChanged() Reading {
	return newReading(b.store.LastChanged())
}

// Addr returns the bound listen address, or nil when not running.
func (b *Bridge) Addr() net.Addr {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Handler returns the HTTP API handler, for mounting on an existing server.
func (b *Bridge) Handler() http.Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.api.Handler()
}

// apiSource adapts a Bridge to httpapi.Source.
type apiSource struct {
	b *Bridge
}

func (s apiSource) Snapshot() domain.Snapshot {
	return s.b.store.Snapshot()
}

func (s apiSource) Ingestion() httpapi.IngestionStatus {
	st := s.b.Ingestion()
	return httpapi.IngestionStatus{
		State:     string(st.State),
		Port:      st.Port,
		BaudRate:  st.BaudRate,
		LastError: st.LastError,
		Since:     st.Since,
	}
}
