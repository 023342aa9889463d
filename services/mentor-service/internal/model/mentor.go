package model

import "time"

// Mentor is a public marketplace profile. UserID ties it back to the auth
// account; the mentor keeps the same id across services.
type Mentor struct {
	ID              string
	UserID          string
	DisplayName     string
	Title           string
	Bio             string
	CategoryID      string
	SubcategoryID   string
	HourlyRateCents int64
	Currency        string
	TimeZone        string
	Rating          float64
	ReviewCount     int
	Approved        bool
	CreatedAt       time.Time
}

type Category struct {
	ID            string
	Name          string
	Subcategories []Subcategory
}

type Subcategory struct {
	ID         string
	CategoryID string
	Name       string
}

// MediaItem is a portfolio entry on a mentor profile (intro video, photo).
// Files live in object storage; only the URL is kept here.
type MediaItem struct {
	ID        string
	MentorID  string
	Kind      string // image | video
	URL       string
	Position  int
	CreatedAt time.Time
}

// AvailabilityRule is the persisted form of one weekly recurring window.
type AvailabilityRule struct {
	ID          string
	MentorID    string
	DayOfWeek   int // 0 = Sunday
	StartMinute int
	EndMinute   int
	IsAvailable bool
}

// Application is a become-a-mentor request. Approval happens out of band
// through an emailed token link, so the token is stored hashed alongside
// the pending row.
type Application struct {
	ID          string
	UserID      string
	DisplayName string
	Title       string
	Bio         string
	CategoryID  string
	TimeZone    string
	Status      string // pending | approved | rejected
	CreatedAt   time.Time
	ReviewedAt  *time.Time
}
