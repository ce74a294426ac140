package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestHandlerWritesToFile(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	logger := slog.New(h)

	logger.Info("experiment started", slog.Int("writes", 3))

	out := buf.String()
	if !strings.Contains(out, "INFO:") {
		t.Errorf("output %q missing level prefix", out)
	}
	if !strings.Contains(out, "experiment started") {
		t.Errorf("output %q missing message", out)
	}
}

func TestHandlerDebugMirrorsToStderr(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true)
	logger := slog.New(h)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	savedStderr := os.Stderr
	os.Stderr = w
	logger.Debug("cache fault", slog.Int("dlpn", 5))
	os.Stderr = savedStderr
	w.Close()
	mirrored, _ := io.ReadAll(r)

	if !strings.Contains(buf.String(), "cache fault") {
		t.Errorf("file output missing debug record")
	}
	if !strings.Contains(string(mirrored), "cache fault") {
		t.Errorf("stderr output %q missing mirrored debug record", mirrored)
	}
}

func TestHandlerWithAttrsPreservesDebugFlag(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true)
	child := h.WithAttrs([]slog.Attr{slog.String("component", "ftl")}).(*Handler)
	if !child.debug {
		t.Errorf("WithAttrs lost debug flag")
	}
}
