package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestFor_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWriter("debug", &buf)
	defer Init("info")

	For("dispatcher").Info("frame dropped", "seq", 7)

	out := buf.String()
	if !strings.Contains(out, "component=dispatcher") {
		t.Errorf("expected component attribute, got %q", out)
	}
	if !strings.Contains(out, "seq=7") {
		t.Errorf("expected seq attribute, got %q", out)
	}
}

func TestInitWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter("warn", &buf)
	defer Init("info")

	Info("quiet")
	Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Errorf("warn message missing: %q", out)
	}
}
