package configwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/serialbridge/pkg/log"
	"github.com/bft-labs/serialbridge/pkg/serialbridge"
)

// fakeBridge records Reconfigure calls.
type fakeBridge struct {
	mu      sync.Mutex
	config  serialbridge.Config
	applied []serialbridge.Config
	err     error
}

func (f *fakeBridge) Config() serialbridge.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

func (f *fakeBridge) Reconfigure(cfg serialbridge.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.config = cfg
	f.applied = append(f.applied, cfg)
	return nil
}

func (f *fakeBridge) Status() serialbridge.State { return serialbridge.StateRunning }

func (f *fakeBridge) calls() []serialbridge.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]serialbridge.Config(nil), f.applied...)
}

// portLoader reads the file and uses its trimmed content as the port name.
func portLoader(path string) func() (serialbridge.Config, error) {
	return func() (serialbridge.Config, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return serialbridge.Config{}, err
		}
		text := strings.TrimSpace(string(b))
		if text == "broken" {
			return serialbridge.Config{}, errors.New("parse error")
		}
		cfg := serialbridge.DefaultConfig()
		cfg.Port = text
		return cfg, nil
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func startPlugin(t *testing.T, path string, bridge *fakeBridge) *Plugin {
	t.Helper()
	p := New(Config{
		Path:          path,
		Load:          portLoader(path),
		DebounceDelay: 20 * time.Millisecond,
	})
	err := p.Initialize(context.Background(), serialbridge.PluginConfig{
		Config: bridge.Config(),
		Logger: log.NewNoopLogger(),
		Bridge: bridge,
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func TestPlugin_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "/dev/ttyUSB0")

	bridge := &fakeBridge{config: serialbridge.DefaultConfig()}
	startPlugin(t, path, bridge)

	writeFile(t, path, "/dev/ttyACM1")

	if !waitFor(t, 2*time.Second, func() bool { return len(bridge.calls()) > 0 }) {
		t.Fatal("Reconfigure was not called after the file changed")
	}
	if got := bridge.Config().Port; got != "/dev/ttyACM1" {
		t.Errorf("Port = %q, want /dev/ttyACM1", got)
	}
}

func TestPlugin_DebouncesBurst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "a")

	bridge := &fakeBridge{config: serialbridge.DefaultConfig()}
	p := New(Config{Path: path, Load: portLoader(path), DebounceDelay: 150 * time.Millisecond})
	if err := p.Initialize(context.Background(), serialbridge.PluginConfig{Logger: log.NewNoopLogger(), Bridge: bridge}); err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown(context.Background())

	for _, v := range []string{"b", "c", "d"} {
		writeFile(t, path, v)
		time.Sleep(10 * time.Millisecond)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(bridge.calls()) > 0 }) {
		t.Fatal("Reconfigure was not called")
	}
	time.Sleep(300 * time.Millisecond)

	calls := bridge.calls()
	if len(calls) != 1 {
		t.Fatalf("Reconfigure called %d times, want 1", len(calls))
	}
	if calls[0].Port != "d" {
		t.Errorf("Port = %q, want d", calls[0].Port)
	}
}

func TestPlugin_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "/dev/ttyUSB0")

	bridge := &fakeBridge{config: serialbridge.DefaultConfig()}
	startPlugin(t, path, bridge)

	writeFile(t, filepath.Join(dir, "other.toml"), "x")
	time.Sleep(200 * time.Millisecond)

	if n := len(bridge.calls()); n != 0 {
		t.Errorf("Reconfigure called %d times for an unrelated file", n)
	}
}

func TestPlugin_KeepsSettingsOnLoadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "/dev/ttyUSB0")

	bridge := &fakeBridge{config: serialbridge.DefaultConfig()}
	startPlugin(t, path, bridge)

	writeFile(t, path, "broken")
	time.Sleep(200 * time.Millisecond)
	if n := len(bridge.calls()); n != 0 {
		t.Fatalf("Reconfigure called %d times for an unparsable file", n)
	}

	writeFile(t, path, "/dev/ttyUSB2")
	if !waitFor(t, 2*time.Second, func() bool { return bridge.Config().Port == "/dev/ttyUSB2" }) {
		t.Fatal("watcher did not recover after a load error")
	}
}

func TestPlugin_SkipsUnchangedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "/dev/ttyUSB0")

	cfg := serialbridge.DefaultConfig()
	cfg.Port = "/dev/ttyUSB0"
	bridge := &fakeBridge{config: cfg}
	startPlugin(t, path, bridge)

	writeFile(t, path, "/dev/ttyUSB0\n")
	time.Sleep(200 * time.Millisecond)

	if n := len(bridge.calls()); n != 0 {
		t.Errorf("Reconfigure called %d times without an effective change", n)
	}
}

func TestPlugin_ShutdownStopsWatching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "/dev/ttyUSB0")

	bridge := &fakeBridge{config: serialbridge.DefaultConfig()}
	p := startPlugin(t, path, bridge)

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	writeFile(t, path, "/dev/ttyUSB9")
	time.Sleep(200 * time.Millisecond)

	if n := len(bridge.calls()); n != 0 {
		t.Errorf("Reconfigure called %d times after Shutdown", n)
	}
}

func TestPlugin_DisabledWithoutPath(t *testing.T) {
	p := New(Config{})
	if p.debounceDelay != DefaultDebounceDelay {
		t.Errorf("debounceDelay = %v, want %v", p.debounceDelay, DefaultDebounceDelay)
	}
	err := p.Initialize(context.Background(), serialbridge.PluginConfig{
		Logger: log.NewNoopLogger(),
		Bridge: &fakeBridge{},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestPlugin_Name(t *testing.T) {
	if got := New(Config{}).Name(); got != "configwatcher" {
		t.Errorf("Name() = %q", got)
	}
}

func TestPlugin_ShutdownWithPendingReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "/dev/ttyUSB0")

	bridge := &fakeBridge{config: serialbridge.DefaultConfig()}
	p := New(Config{Path: path, Load: portLoader(path), DebounceDelay: 5 * time.Second})
	if err := p.Initialize(context.Background(), serialbridge.PluginConfig{Logger: log.NewNoopLogger(), Bridge: bridge}); err != nil {
		t.Fatal(err)
	}

	writeFile(t, path, "/dev/ttyUSB3")
	scheduled := waitFor(t, 2*time.Second, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.debounce != nil
	})
	if !scheduled {
		t.Fatal("no reload was scheduled after the write")
	}

	done := make(chan error, 1)
	go func() { done <- p.Shutdown(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Shutdown failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown blocked on a pending reload")
	}
	if n := len(bridge.calls()); n != 0 {
		t.Errorf("Reconfigure called %d times after Shutdown", n)
	}
}
