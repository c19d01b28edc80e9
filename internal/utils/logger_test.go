package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   Debug,
		"WARN":    Warning,
		"warning": Warning,
		"error":   Error,
		"fatal":   Critical,
		"":        Info,
		"verbose": Info,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "test", Warning)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warning", "key", "value")
	logger.Error("visible error", "dangling")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected debug/info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[test] ") {
		t.Errorf("expected prefix in output, got %q", out)
	}
	if !strings.Contains(out, "[WARN] visible warning key=value") {
		t.Errorf("expected formatted warning, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] visible error") || strings.Contains(out, "dangling=") {
		t.Errorf("expected error without dangling key, got %q", out)
	}
}
