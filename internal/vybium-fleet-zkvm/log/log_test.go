package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v (raw: %s)", err, buf.String())
	}
	return entry
}

func TestModuleAndWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, slog.LevelDebug).Module("host").With("session", "abc")
	l.Info("proved", "cycles", 12)

	entry := decode(t, &buf)
	if entry["module"] != "host" || entry["session"] != "abc" {
		t.Errorf("entry = %v", entry)
	}
	if entry["msg"] != "proved" || entry["cycles"] != float64(12) {
		t.Errorf("entry = %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, slog.LevelWarn)
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("records below the level were written: %s", buf.String())
	}
	l.Warn("shown")
	if decode(t, &buf)["level"] != "WARN" {
		t.Errorf("level = %v", decode(t, &buf)["level"])
	}
}

func TestDefault(t *testing.T) {
	old := Default()
	defer SetDefault(old)

	var buf bytes.Buffer
	SetDefault(NewWriter(&buf, slog.LevelDebug))
	Error("failed", "code", "guest_abort")
	if decode(t, &buf)["code"] != "guest_abort" {
		t.Errorf("default logger did not receive the record")
	}

	SetDefault(nil)
	if Default() == nil {
		t.Error("SetDefault(nil) cleared the default logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) succeeded")
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("dropped")
}
