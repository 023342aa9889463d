package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// SlotMinutes is the fixed session granularity. Every offered start time
	// begins a session of exactly this length.
	SlotMinutes = 60

	// DefaultGridStartMinute and DefaultGridEndMinute bound the fallback grid
	// offered when a mentor has never configured any availability.
	DefaultGridStartMinute = 9 * 60  // 09:00
	DefaultGridEndMinute   = 17 * 60 // 17:00

	DateFormat = "2006-01-02"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Rule is one recurring weekly availability window owned by a mentor.
// Start and end are minutes from midnight in the mentor's timezone,
// half-open: a 09:00-11:00 rule covers 09:00 and 10:00 starts but not 11:00.
type Rule struct {
	ID          string
	MentorID    string
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
	Available   bool
}

// SkippedRule records a malformed rule that was excluded from resolution.
// One bad row must never take down the whole mentor's calendar.
type SkippedRule struct {
	RuleID string
	Reason string
}

// Schedule maps each calendar date in the horizon to its ordered bookable
// start times. Every horizon date is present as a key; dates with nothing
// bookable carry an empty, non-nil list. Slot lists are structural
// availability only: live appointment state is overlaid separately via
// Exclude.
type Schedule struct {
	Dates   []string            // horizon dates in ascending order, DateFormat keys
	Slots   map[string][]string // date -> ascending "HH:MM" start times
	Skipped []SkippedRule
}

// Resolve derives the bookable schedule for a mentor over the horizon
// [from, from+horizonDays). The reference time is passed in explicitly so
// resolution is deterministic; callers pass time.Now() in the mentor's
// stored timezone, and display-side conversion is the caller's problem.
//
// When the mentor has zero active well-formed rules on every weekday, all
// horizon dates get the default grid. As soon as a single active rule
// exists anywhere in the week, unconfigured weekdays yield empty days
// rather than the grid.
func Resolve(mentorID string, from time.Time, horizonDays int, rules []Rule) (*Schedule, error) {
	if strings.TrimSpace(mentorID) == "" {
		return nil, fmt.Errorf("%w: mentor id is required", ErrInvalidArgument)
	}
	if horizonDays <= 0 {
		return nil, fmt.Errorf("%w: horizon days must be positive, got %d", ErrInvalidArgument, horizonDays)
	}

	byWeekday := map[time.Weekday][]Rule{}
	var skipped []SkippedRule
	activeRules := 0
	for _, r := range rules {
		if !r.Available {
			continue
		}
		if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
			skipped = append(skipped, SkippedRule{RuleID: r.ID, Reason: fmt.Sprintf("weekday %d out of range", r.Weekday)})
			continue
		}
		if r.StartMinute < 0 || r.EndMinute > minutesPerDay || r.StartMinute >= r.EndMinute {
			skipped = append(skipped, SkippedRule{RuleID: r.ID, Reason: "start must be before end"})
			continue
		}
		byWeekday[r.Weekday] = append(byWeekday[r.Weekday], r)
		activeRules++
	}

	useFallback := activeRules == 0

	schedule := &Schedule{
		Dates:   make([]string, 0, horizonDays),
		Slots:   make(map[string][]string, horizonDays),
		Skipped: skipped,
	}

	first := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for i := 0; i < horizonDays; i++ {
		date := first.AddDate(0, 0, i)
		key := date.Format(DateFormat)
		schedule.Dates = append(schedule.Dates, key)
		if useFallback {
			schedule.Slots[key] = defaultGrid()
			continue
		}
		schedule.Slots[key] = expandRules(byWeekday[date.Weekday()])
	}

	return schedule, nil
}

// expandRules walks each window in hourly steps from its start, keeping marks
// whose full session still fits before the window's end. Overlapping windows
// are deduplicated and the result sorted ascending.
func expandRules(rules []Rule) []string {
	seen := map[int]struct{}{}
	for _, r := range rules {
		for m := r.StartMinute; m+SlotMinutes <= r.EndMinute; m += SlotMinutes {
			seen[m] = struct{}{}
		}
	}

	minutes := make([]int, 0, len(seen))
	for m := range seen {
		minutes = append(minutes, m)
	}
	sort.Ints(minutes)

	marks := make([]string, 0, len(minutes))
	for _, m := range minutes {
		marks = append(marks, FormatClock(m))
	}
	return marks
}

func defaultGrid() []string {
	marks := make([]string, 0, (DefaultGridEndMinute-DefaultGridStartMinute)/SlotMinutes)
	for m := DefaultGridStartMinute; m+SlotMinutes <= DefaultGridEndMinute; m += SlotMinutes {
		marks = append(marks, FormatClock(m))
	}
	return marks
}

// CopyToWeekdays replicates the source weekday's active windows onto every
// other weekday, returning the new rules to insert. Source rules are left
// untouched and inactive rules are not copied.
func CopyToWeekdays(rules []Rule, source time.Weekday) []Rule {
	var out []Rule
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if wd == source {
			continue
		}
		for _, r := range rules {
			if r.Weekday != source || !r.Available {
				continue
			}
			copied := r
			copied.ID = ""
			copied.Weekday = wd
			out = append(out, copied)
		}
	}
	return out
}

// Exclude removes already booked start times from the schedule in place.
// booked maps DateFormat keys to "HH:MM" start times. This keeps Resolve
// pure while still letting the read path hide taken slots; the write path
// stays the authority on conflicts.
func Exclude(schedule *Schedule, booked map[string][]string) {
	if schedule == nil || len(booked) == 0 {
		return
	}
	for date, taken := range booked {
		slots, ok := schedule.Slots[date]
		if !ok || len(slots) == 0 {
			continue
		}
		takenSet := make(map[string]struct{}, len(taken))
		for _, t := range taken {
			takenSet[t] = struct{}{}
		}
		kept := make([]string, 0, len(slots))
		for _, s := range slots {
			if _, gone := takenSet[s]; !gone {
				kept = append(kept, s)
			}
		}
		schedule.Slots[date] = kept
	}
}
