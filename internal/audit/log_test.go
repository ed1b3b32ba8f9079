package audit

import (
	"context"
	"testing"

	"finbook.org/internal/auth"
)

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
	if err := LogEvent(context.Background(), "   ", nil); err == nil {
		t.Fatal("expected error for blank event name")
	}
}

func TestLogEventAcceptsContextMetadata(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithOwner(ctx, "alice")

	if err := LogEvent(ctx, "ledger.transaction.save", map[string]any{"transaction_id": 42}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
}

func TestWithRequestID(t *testing.T) {
	if rid := requestIDFromContext(WithRequestID(context.Background(), "abc")); rid != "abc" {
		t.Fatalf("request id %q, want abc", rid)
	}
	// Blank ids are not attached.
	if rid := requestIDFromContext(WithRequestID(context.Background(), "  ")); rid != "" {
		t.Fatalf("blank request id should be dropped, got %q", rid)
	}
}
