package model

import "time"

// Appointment is one booked mentor session. SessionDate and StartTime are
// stored as the mentor-local calendar date and wall-clock start ("2006-01-02"
// and "HH:MM") because slots are derived and displayed in the mentor's
// timezone; EndTime is implied by the fixed one-hour session length.
type Appointment struct {
	ID                 string
	MentorID           string
	UserID             string
	SessionDate        string
	StartTime          string
	SessionType        string // video | chat | call
	ProblemDescription string
	Status             string // pending | confirmed | completed | cancelled
	PaymentIntentID    string
	PaymentStatus      string
	AmountCents        int64
	Currency           string
	CancelledAt        *time.Time
	CancelReason       string
	CreatedAt          time.Time
}

func ValidSessionType(t string) bool {
	switch t {
	case "video", "chat", "call":
		return true
	}
	return false
}
