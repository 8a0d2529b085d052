package cliconfig

import (
	"os"
	"time"
)

// ApplyEnvConfig applies configuration from environment variables (SERIALBRIDGE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("port", env("PORT"), &cfg.Port)
	s.setString("pattern", env("PATTERN"), &cfg.Pattern)
	s.setString("listen", env("LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("cors-origin", env("CORS_ORIGIN"), &cfg.CORSOrigin)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setIntFromString("baud", env("BAUD_RATE"), &cfg.BaudRate); err != nil {
		return err
	}
	if err := s.setIntFromString("buffer-size", env("BUFFER_SIZE"), &cfg.BufferSize); err != nil {
		return err
	}

	durations := []struct {
		flag string
		env  string
		dst  *time.Duration
	}{
		{"flush-timeout", "FLUSH_TIMEOUT", &cfg.FlushTimeout},
		{"read-timeout", "READ_TIMEOUT", &cfg.ReadTimeout},
		{"reconnect-initial", "RECONNECT_INITIAL", &cfg.ReconnectInitial},
		{"reconnect-max", "RECONNECT_MAX", &cfg.ReconnectMax},
		{"shutdown-timeout", "SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, env(d.env), d.dst); err != nil {
			return err
		}
	}

	s.setBoolFromString("quiet", env("QUIET"), &cfg.Quiet)
	s.setBoolFromString("watch", env("WATCH"), &cfg.Watch)

	return nil
}
