package jobs

import (
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	remindAt := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	got := Key("appt-1", remindAt)
	want := "appt-1|2026-03-02T08:00:00Z"
	if got != want {
		t.Fatalf("Key = %q, want %q", got, want)
	}

	// The key normalizes to UTC, so the same instant in another zone matches.
	loc := time.FixedZone("plus2", 2*60*60)
	if other := Key("appt-1", remindAt.In(loc)); other != want {
		t.Fatalf("Key in non-UTC zone = %q, want %q", other, want)
	}
}
