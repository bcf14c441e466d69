package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseHeaders(t *testing.T) {
	got, err := parseHeaders([]string{"Referer: https://example.com", "X-Token:abc:def", " Accept :  application/pdf "})
	if err != nil {
		t.Fatalf("parseHeaders failed: %v", err)
	}

	want := map[string]string{
		"Referer": "https://example.com",
		"X-Token": "abc:def",
		"Accept":  "application/pdf",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHeaders_Invalid(t *testing.T) {
	for _, pair := range []string{"no-colon", ": value"} {
		if _, err := parseHeaders([]string{pair}); err == nil {
			t.Errorf("Expected error for %q", pair)
		}
	}
}

func TestSetupLogging(t *testing.T) {
	testCases := []struct {
		level      string
		enabled    slog.Level
		suppressed slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"WARN", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"bogus", slog.LevelInfo, slog.LevelDebug},
	}

	for _, tc := range testCases {
		logger := setupLogging(&bytes.Buffer{}, tc.level)
		if !logger.Enabled(context.Background(), tc.enabled) {
			t.Errorf("Level %q: expected %v enabled", tc.level, tc.enabled)
		}
		if logger.Enabled(context.Background(), tc.suppressed) {
			t.Errorf("Level %q: expected %v suppressed", tc.level, tc.suppressed)
		}
	}
}

func TestSetupLogging_Output(t *testing.T) {
	var buf bytes.Buffer
	setupLogging(&buf, "info").Info("wrote snapshot", "path", "/out/a.jpg")

	if !strings.Contains(buf.String(), "msg=\"wrote snapshot\"") || !strings.Contains(buf.String(), "path=/out/a.jpg") {
		t.Errorf("Unexpected log output %q", buf.String())
	}
}
