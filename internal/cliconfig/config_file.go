package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Port             string `toml:"port,omitempty"`
	BaudRate         int    `toml:"baud_rate,omitempty"`
	BufferSize       int    `toml:"buffer_size,omitempty"`
	FlushTimeout     string `toml:"flush_timeout,omitempty"`
	ReadTimeout      string `toml:"read_timeout,omitempty"`
	ReconnectInitial string `toml:"reconnect_initial,omitempty"`
	ReconnectMax     string `toml:"reconnect_max,omitempty"`
	Pattern          string `toml:"pattern,omitempty"`
	ListenAddr       string `toml:"listen_addr,omitempty"`
	CORSOrigin       string `toml:"cors_origin,omitempty"`
	ShutdownTimeout  string `toml:"shutdown_timeout,omitempty"`
	LogLevel         string `toml:"log_level,omitempty"`
	Quiet            *bool  `toml:"quiet,omitempty"`
	Watch            *bool  `toml:"watch,omitempty"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// WriteFileConfig writes fc to path as TOML, creating the parent directory.
// The file is written to a temporary name and renamed so a watcher never
// observes a partial file.
func WriteFileConfig(path string, fc FileConfig) error {
	b, err := toml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.serialbridge/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".serialbridge", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("port", fc.Port, &cfg.Port)
	s.setString("pattern", fc.Pattern, &cfg.Pattern)
	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("cors-origin", fc.CORSOrigin, &cfg.CORSOrigin)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setInt("baud", fc.BaudRate, &cfg.BaudRate)
	s.setInt("buffer-size", fc.BufferSize, &cfg.BufferSize)

	if err := s.setDuration("flush-timeout", fc.FlushTimeout, &cfg.FlushTimeout); err != nil {
		return err
	}
	if err := s.setDuration("read-timeout", fc.ReadTimeout, &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-initial", fc.ReconnectInitial, &cfg.ReconnectInitial); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-max", fc.ReconnectMax, &cfg.ReconnectMax); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setBool("quiet", fc.Quiet, &cfg.Quiet)
	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileConfigFrom converts cfg into its file representation.
// Only values that differ from the defaults are kept.
func FileConfigFrom(cfg Config) FileConfig {
	def := DefaultConfig()
	fc := FileConfig{Port: cfg.Port, Pattern: cfg.Pattern}

	if cfg.BaudRate != def.BaudRate {
		fc.BaudRate = cfg.BaudRate
	}
	if cfg.BufferSize != def.BufferSize {
		fc.BufferSize = cfg.BufferSize
	}
	if cfg.FlushTimeout != def.FlushTimeout {
		fc.FlushTimeout = cfg.FlushTimeout.String()
	}
	if cfg.ReadTimeout != def.ReadTimeout {
		fc.ReadTimeout = cfg.ReadTimeout.String()
	}
	if cfg.ReconnectInitial != def.ReconnectInitial {
		fc.ReconnectInitial = cfg.ReconnectInitial.String()
	}
	if cfg.ReconnectMax != def.ReconnectMax {
		fc.ReconnectMax = cfg.ReconnectMax.String()
	}
	if cfg.ListenAddr != def.ListenAddr {
		fc.ListenAddr = cfg.ListenAddr
	}
	if cfg.CORSOrigin != def.CORSOrigin {
		fc.CORSOrigin = corsOrigin(cfg.CORSOrigin)
	}
	if cfg.ShutdownTimeout != def.ShutdownTimeout {
		fc.ShutdownTimeout = cfg.ShutdownTimeout.String()
	}
	if cfg.LogLevel != def.LogLevel {
		fc.LogLevel = cfg.LogLevel
	}
	if cfg.Quiet != def.Quiet {
		fc.Quiet = &cfg.Quiet
	}
	if cfg.Watch != def.Watch {
		fc.Watch = &cfg.Watch
	}
	return fc
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
