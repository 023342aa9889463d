package unread

import (
	"context"
	"log/slog"
	"testing"
)

type fakeStore struct {
	perConversation int64
	total           int64
}

func (f fakeStore) CountUnread(_ context.Context, _, _ string) (int64, error) {
	return f.perConversation, nil
}

func (f fakeStore) CountUnreadTotal(_ context.Context, _ string) (int64, error) {
	return f.total, nil
}

func TestCounterFallsBackWithoutRedis(t *testing.T) {
	counter := NewCounter(nil, fakeStore{perConversation: 3, total: 7}, slog.Default())
	ctx := context.Background()

	// Writes are no-ops without a client.
	counter.Incr(ctx, "u1", "c1")
	counter.Reset(ctx, "u1", "c1")
	counter.Clear(ctx, "u1")

	n, err := counter.Conversation(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected fallback count 3, got %d", n)
	}

	total, err := counter.Total(ctx, "u1")
	if err != nil {
		t.Fatalf("Total failed: %v", err)
	}
	if total != 7 {
		t.Fatalf("expected fallback total 7, got %d", total)
	}
}

func TestParseCount(t *testing.T) {
	for raw, want := range map[string]int64{"5": 5, "0": 0, "-2": 0, "junk": 0} {
		if got := parseCount(raw); got != want {
			t.Fatalf("parseCount(%q) = %d, want %d", raw, got, want)
		}
	}
}
