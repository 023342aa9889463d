package consumer

import "testing"

func TestSessionMessage(t *testing.T) {
	tests := []struct {
		topic        string
		wantKind     string
		mentorFacing bool
		ok           bool
	}{
		{"booking.session.created.v1", "session.booked", true, true},
		{"booking.session.rescheduled.v1", "session.rescheduled", true, true},
		{"booking.session.cancelled.v1", "session.cancelled", true, true},
		{"booking.session.confirmed.v1", "session.confirmed", false, true},
		{"booking.session.completed.v1", "session.completed", false, true},
		{"booking.session.unknown.v1", "", false, false},
	}
	for _, tt := range tests {
		kind, title, mentorFacing, ok := sessionMessage(tt.topic)
		if ok != tt.ok {
			t.Fatalf("%s: ok = %v, want %v", tt.topic, ok, tt.ok)
		}
		if kind != tt.wantKind || mentorFacing != tt.mentorFacing {
			t.Fatalf("%s: got (%s, %v), want (%s, %v)", tt.topic, kind, mentorFacing, tt.wantKind, tt.mentorFacing)
		}
		if ok && title == "" {
			t.Fatalf("%s: expected a title", tt.topic)
		}
	}
}

func TestSessionTypeLabel(t *testing.T) {
	for in, want := range map[string]string{
		"video": "Video",
		"chat":  "Chat",
		"call":  "Call",
		"other": "Mentoring",
	} {
		if got := sessionTypeLabel(in); got != want {
			t.Fatalf("sessionTypeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
