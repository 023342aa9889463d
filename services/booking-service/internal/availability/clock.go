package availability

import (
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// ParseClock parses a 24-hour "HH:MM" wall-clock string into minutes from
// midnight. "24:00" is accepted as an end-of-day boundary.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("clock %q: bad hour", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("clock %q: bad minute", s)
	}
	if hour < 0 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock %q: out of range", s)
	}
	total := hour*60 + minute
	if total > minutesPerDay {
		return 0, fmt.Errorf("clock %q: out of range", s)
	}
	return total, nil
}

// FormatClock renders minutes from midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
