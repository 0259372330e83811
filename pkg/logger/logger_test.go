package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: &buf})

	ctx := logg.WithRequestID(context.Background(), "req-1")
	ctx = logg.WithUserID(ctx, "user-1")
	logg.Info(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if entry["request_id"] != "req-1" || entry["user_id"] != "user-1" {
		t.Fatalf("context fields missing from entry: %v", entry)
	}
	if entry["service"] != "test" {
		t.Fatalf("service field missing: %v", entry)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if ParseLevel("") != zerolog.InfoLevel {
		t.Fatal("empty level should parse as info")
	}
	if ParseLevel("nonsense") != zerolog.InfoLevel {
		t.Fatal("invalid level should parse as info")
	}
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Fatal("debug should parse as debug")
	}
}
