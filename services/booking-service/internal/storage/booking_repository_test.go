package storage

import "testing"

// The idempotency flow claims a key with an insert, then re-reads it locked.
// A row claimed but never finalized comes back with a zero status code and
// must not be replayed as a stored response.
func TestIdempotencyRecordFinalized(t *testing.T) {
	pending := IdempotencyRecord{
		UserID:         "user-1",
		IdempotencyKey: "key-1",
	}
	if pending.Finalized() {
		t.Fatal("freshly claimed key must not report finalized")
	}

	done := IdempotencyRecord{
		UserID:          "user-1",
		IdempotencyKey:  "key-1",
		AppointmentID:   "appt-1",
		StatusCode:      201,
		ResponsePayload: []byte(`{"appointment_id":"appt-1"}`),
	}
	if !done.Finalized() {
		t.Fatal("stored response must report finalized")
	}
}
