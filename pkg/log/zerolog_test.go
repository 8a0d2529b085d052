package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewZerolog_InvalidLevel(t *testing.T) {
	if _, err := NewZerolog(&bytes.Buffer{}, "loud"); err == nil {
		t.Fatal("NewZerolog() expected error for unknown level")
	}
}

func TestZerologAdapter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZerolog(&buf, "warn")
	if err != nil {
		t.Fatalf("NewZerolog() error = %v", err)
	}

	logger.Info("hidden message")
	logger.Warn("visible message", String("port", "/dev/ttyUSB0"))

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Errorf("info message written at warn level: %q", out)
	}
	if !strings.Contains(out, "visible message") || !strings.Contains(out, "/dev/ttyUSB0") {
		t.Errorf("warn message or field missing: %q", out)
	}
}

func TestZerologAdapter_WithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZerolog(&buf, "debug")
	if err != nil {
		t.Fatalf("NewZerolog() error = %v", err)
	}

	child := logger.With(String("component", "ingest"))
	child.Error("read failed", Err(errors.New("device gone")))

	out := buf.String()
	for _, want := range []string{"component", "ingest", "read failed", "device gone"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}
