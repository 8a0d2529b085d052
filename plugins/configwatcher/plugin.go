// Package configwatcher reloads the bridge configuration when its config file
// changes on disk.
package configwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/serialbridge/pkg/log"
	"github.com/bft-labs/serialbridge/pkg/serialbridge"
)

// Plugin watches a config file and applies it through Bridge.Reconfigure.
// The containing directory is watched rather than the file itself so that
// editors which save by rename are still noticed.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	load          func() (serialbridge.Config, error)

	logger   log.Logger
	bridge   serialbridge.Controller
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  sync.WaitGroup
	stopped  bool
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the config file to watch.
	Path string

	// Load reads the file and returns the resolved bridge configuration.
	Load func() (serialbridge.Config, error)

	// DebounceDelay is the delay to wait after the last change before reloading.
	// Default: 200 milliseconds
	DebounceDelay time.Duration
}

// DefaultDebounceDelay collapses the burst of events a single save produces.
const DefaultDebounceDelay = 200 * time.Millisecond

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		load:          cfg.Load,
		logger:        log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the config file's directory.
// A missing path or loader disables the plugin without failing Start.
func (p *Plugin) Initialize(ctx context.Context, cfg serialbridge.PluginConfig) error {
	p.mu.Lock()
	if cfg.Logger != nil {
		p.logger = cfg.Logger.With(log.String("plugin", p.Name()))
	}
	p.bridge = cfg.Bridge
	p.stopped = false
	p.mu.Unlock()

	if p.path == "" || p.load == nil || p.bridge == nil {
		p.logger.Warn("config watcher disabled: no config file or loader")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("config watcher: failed to create watcher", log.Err(err))
		return nil
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		p.logger.Error("config watcher: failed to watch directory",
			log.String("dir", filepath.Dir(p.path)),
			log.Err(err))
		_ = watcher.Close()
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.watcher = watcher
	p.cancel = cancel
	p.mu.Unlock()

	p.logger.Info("watching config file", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops the watcher and waits for an in-flight reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	if p.debounce != nil && p.debounce.Stop() {
		p.reloads.Done()
	}
	p.debounce = nil
	cancel := p.cancel
	watcher := p.watcher
	p.cancel = nil
	p.watcher = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		_ = watcher.Close()
	}
	p.wg.Wait()

	done := make(chan struct{})
	go func() {
		p.reloads.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) scheduleReload() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	if p.debounce != nil && p.debounce.Stop() {
		p.reloads.Done()
	}
	p.reloads.Add(1)
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		defer p.reloads.Done()
		p.reload()
	})
}

func (p *Plugin) reload() {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return
	}

	cfg, err := p.load()
	if err != nil {
		p.logger.Error("config reload failed, keeping current settings",
			log.String("path", p.path),
			log.Err(err))
		return
	}
	if cfg == p.bridge.Config() {
		p.logger.Debug("config file changed without effective changes")
		return
	}
	if err := p.bridge.Reconfigure(cfg); err != nil {
		p.logger.Error("config reload rejected", log.Err(err))
		return
	}
	p.logger.Info("config reloaded",
		log.String("port", cfg.Port),
		log.Int("baud", cfg.BaudRate))
}

// Ensure Plugin implements serialbridge.Plugin.
var _ serialbridge.Plugin = (*Plugin)(nil)
