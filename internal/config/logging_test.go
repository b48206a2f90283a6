package config

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Info("harvest started", "groups", 6)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "harvest started" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["level"] != "INFO" {
		t.Errorf("level = %v", record["level"])
	}
}

func TestNewLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Info("harvest started")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("expected text output, got JSON-looking line %q", out)
	}
	if !strings.Contains(out, "msg=\"harvest started\"") {
		t.Errorf("unexpected text output %q", out)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
	}{
		{"debug", true},
		{"info", false},
		{"warn", false},
		{"error", false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := NewLogger(LoggingConfig{Level: tt.level, Format: "text"}, &buf)
		logger.Debug("resolved batch")
		got := buf.Len() > 0
		if got != tt.wantDebug {
			t.Errorf("level %q: debug emitted = %v, want %v", tt.level, got, tt.wantDebug)
		}
	}
}
