package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/serialbridge/pkg/serialbridge"
)

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "SERIALBRIDGE_"

// Config holds CLI configuration for serialbridge.
type Config struct {
	Port     string
	BaudRate int

	BufferSize   int
	FlushTimeout time.Duration
	ReadTimeout  time.Duration

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	Pattern string

	ListenAddr      string
	CORSOrigin      string
	ShutdownTimeout time.Duration

	LogLevel string
	Quiet    bool
	Watch    bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	b := serialbridge.DefaultConfig()
	return Config{
		Port:             b.Port,
		BaudRate:         b.BaudRate,
		BufferSize:       b.BufferSize,
		FlushTimeout:     b.FlushTimeout,
		ReadTimeout:      b.ReadTimeout,
		ReconnectInitial: b.ReconnectInitial,
		ReconnectMax:     b.ReconnectMax,
		ListenAddr:       b.ListenAddr,
		CORSOrigin:       b.CORSOrigin,
		ShutdownTimeout:  b.ShutdownTimeout,
		LogLevel:         "info",
		Watch:            true,
	}
}

// Validate checks the configuration for errors.
// An unusable port or baud rate is not an error here; the bridge reports it at runtime.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}

	b := c.Bridge()
	b.SetDefaults()
	return b.Validate()
}

// Bridge converts the CLI configuration into a library configuration.
func (c *Config) Bridge() serialbridge.Config {
	return serialbridge.Config{
		Port:             c.Port,
		BaudRate:         c.BaudRate,
		BufferSize:       c.BufferSize,
		FlushTimeout:     c.FlushTimeout,
		ReadTimeout:      c.ReadTimeout,
		ReconnectInitial: c.ReconnectInitial,
		ReconnectMax:     c.ReconnectMax,
		Pattern:          c.Pattern,
		ListenAddr:       c.ListenAddr,
		CORSOrigin:       corsOrigin(c.CORSOrigin),
		ShutdownTimeout:  c.ShutdownTimeout,
	}
}

// corsOrigin maps an explicitly empty origin to serialbridge.CORSDisabled so
// that it survives defaulting.
func corsOrigin(v string) string {
	if v == "" {
		return serialbridge.CORSDisabled
	}
	return v
}

// Resolve layers the config file at path (when it exists) and then the
// SERIALBRIDGE_* environment over cfg. Values whose flag is in changed are
// left alone, giving the precedence flag > env > file > default.
func Resolve(cfg Config, path string, changed map[string]bool) (Config, error) {
	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
		if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
