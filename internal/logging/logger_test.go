package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// captureDefault routes the default logger into a buffer for one test.
func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestFromContextCarriesRequestID(t *testing.T) {
	buf := captureDefault(t)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	FromContext(ctx).Info("importing file")

	if out := buf.String(); !strings.Contains(out, "request_id=req-42") {
		t.Errorf("log entry missing request id: %s", out)
	}
}

func TestFromContextWithoutRequestID(t *testing.T) {
	buf := captureDefault(t)

	FromContext(context.Background()).Info("importing file")

	if out := buf.String(); strings.Contains(out, "request_id") {
		t.Errorf("log entry should not carry a request id: %s", out)
	}
}

func TestWithFields(t *testing.T) {
	buf := captureDefault(t)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	WithFields(ctx, "job_id", "job-1", "file", "10000064.fba").Info("importing file")

	out := buf.String()
	for _, want := range []string{"request_id=req-42", "job_id=job-1", "file=10000064.fba"} {
		if !strings.Contains(out, want) {
			t.Errorf("log entry missing %s: %s", want, out)
		}
	}
}
