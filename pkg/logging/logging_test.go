package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	defer zap.ReplaceGlobals(zap.NewNop())

	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "info", "json")
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Info("visible", zap.String("run_id", "r1"))
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["msg"] != "visible" || entry["run_id"] != "r1" || entry["timestamp"] == nil {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewWithWriterRejectsFormat(t *testing.T) {
	if _, err := NewWithWriter(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger := zap.NewNop().Named("ctx")
	ctx := WithContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("FromContext did not return stored logger")
	}
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should fall back to the global logger")
	}
}
