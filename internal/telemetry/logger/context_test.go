package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("test message")

	if buf.Len() == 0 {
		t.Error("Logger from context should produce output")
	}
}

func TestFromContext_Default(t *testing.T) {
	if l := FromContext(context.Background()); l != slog.Default() {
		t.Error("FromContext should return slog.Default() when unset")
	}
}

func TestRequestAndRoundID(t *testing.T) {
	ctx := context.Background()
	if RequestIDFromContext(ctx) != "" || RoundIDFromContext(ctx) != "" {
		t.Fatal("empty context should carry no IDs")
	}

	ctx = WithRequestID(ctx, "01HREQ")
	ctx = WithRoundID(ctx, "01HROUND")

	if got := RequestIDFromContext(ctx); got != "01HREQ" {
		t.Errorf("RequestIDFromContext() = %q", got)
	}
	if got := RoundIDFromContext(ctx); got != "01HROUND" {
		t.Errorf("RoundIDFromContext() = %q", got)
	}
}

func TestL_EnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithLogger(context.Background(), l)
	ctx = WithRequestID(ctx, "01HREQ")
	ctx = WithRoundID(ctx, "01HROUND")

	L(ctx).Info("enriched")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if entry["request_id"] != "01HREQ" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
	if entry["round_id"] != "01HROUND" {
		t.Errorf("round_id = %v", entry["round_id"])
	}
}
