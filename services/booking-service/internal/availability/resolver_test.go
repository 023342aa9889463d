package availability

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// 2026-03-01 is a Sunday.
var sunday = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

func rule(wd time.Weekday, start, end string) Rule {
	s, err := ParseClock(start)
	if err != nil {
		panic(err)
	}
	e, err := ParseClock(end)
	if err != nil {
		panic(err)
	}
	return Rule{MentorID: "mentor-1", Weekday: wd, StartMinute: s, EndMinute: e, Available: true}
}

func TestResolveRejectsBadArguments(t *testing.T) {
	if _, err := Resolve("", sunday, 7, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty mentor id: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := Resolve("  ", sunday, 7, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("blank mentor id: err = %v, want ErrInvalidArgument", err)
	}
	for _, horizon := range []int{0, -1} {
		if _, err := Resolve("mentor-1", sunday, horizon, nil); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("horizon %d: err = %v, want ErrInvalidArgument", horizon, err)
		}
	}
}

func TestResolveExpandsRuleToHourlyMarks(t *testing.T) {
	schedule, err := Resolve("mentor-1", sunday, 7, []Rule{rule(time.Monday, "09:00", "11:00")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got := schedule.Slots["2026-03-02"]
	want := []string{"09:00", "10:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("monday slots = %v, want %v", got, want)
	}
}

func TestResolveSubHourRuleYieldsNothing(t *testing.T) {
	schedule, err := Resolve("mentor-1", sunday, 7, []Rule{rule(time.Monday, "09:00", "09:30")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got := schedule.Slots["2026-03-02"]
	if got == nil || len(got) != 0 {
		t.Fatalf("monday slots = %#v, want empty non-nil list", got)
	}
}

func TestResolveDedupesOverlappingRules(t *testing.T) {
	rules := []Rule{
		rule(time.Monday, "09:00", "12:00"),
		rule(time.Monday, "10:00", "14:00"),
	}
	schedule, err := Resolve("mentor-1", sunday, 7, rules)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got := schedule.Slots["2026-03-02"]
	want := []string{"09:00", "10:00", "11:00", "12:00", "13:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("monday slots = %v, want %v", got, want)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("slots not strictly ascending: %v", got)
		}
	}
}

func TestResolveFallbackGridWhenNoActiveRules(t *testing.T) {
	inert := rule(time.Monday, "09:00", "17:00")
	inert.Available = false

	schedule, err := Resolve("mentor-1", sunday, 7, []Rule{inert})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	want := []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}
	if len(schedule.Dates) != 7 {
		t.Fatalf("dates = %d, want 7", len(schedule.Dates))
	}
	for _, date := range schedule.Dates {
		if !reflect.DeepEqual(schedule.Slots[date], want) {
			t.Fatalf("date %s slots = %v, want default grid %v", date, schedule.Slots[date], want)
		}
	}
}

func TestResolveNoFallbackOncePartiallyConfigured(t *testing.T) {
	schedule, err := Resolve("mentor-1", sunday, 7, []Rule{rule(time.Wednesday, "09:00", "10:00")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, date := range schedule.Dates {
		slots := schedule.Slots[date]
		if date == "2026-03-04" {
			if !reflect.DeepEqual(slots, []string{"09:00"}) {
				t.Fatalf("wednesday slots = %v, want [09:00]", slots)
			}
			continue
		}
		if slots == nil || len(slots) != 0 {
			t.Fatalf("date %s slots = %#v, want empty non-nil list", date, slots)
		}
	}
}

func TestResolveHorizonBounds(t *testing.T) {
	for _, horizon := range []int{7, 30} {
		schedule, err := Resolve("mentor-1", sunday, horizon, nil)
		if err != nil {
			t.Fatalf("resolve horizon %d: %v", horizon, err)
		}
		if len(schedule.Dates) != horizon || len(schedule.Slots) != horizon {
			t.Fatalf("horizon %d: got %d dates, %d slot keys", horizon, len(schedule.Dates), len(schedule.Slots))
		}
		for i, key := range schedule.Dates {
			parsed, err := time.ParseInLocation(DateFormat, key, time.UTC)
			if err != nil {
				t.Fatalf("date key %q: %v", key, err)
			}
			want := time.Date(2026, 3, 1+i, 0, 0, 0, 0, time.UTC)
			if !parsed.Equal(want) {
				t.Fatalf("date[%d] = %s, want %s", i, key, want.Format(DateFormat))
			}
		}
	}
}

func TestResolveSkipsMalformedRules(t *testing.T) {
	bad := rule(time.Monday, "09:00", "11:00")
	bad.ID = "bad"
	bad.StartMinute, bad.EndMinute = bad.EndMinute, bad.StartMinute

	schedule, err := Resolve("mentor-1", sunday, 7, []Rule{bad, rule(time.Monday, "13:00", "15:00")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got := schedule.Slots["2026-03-02"]
	want := []string{"13:00", "14:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("monday slots = %v, want %v", got, want)
	}
	if len(schedule.Skipped) != 1 || schedule.Skipped[0].RuleID != "bad" {
		t.Fatalf("skipped = %+v, want the single malformed rule", schedule.Skipped)
	}
}

func TestResolveWeekExample(t *testing.T) {
	schedule, err := Resolve("mentor-1", sunday, 7, []Rule{rule(time.Monday, "09:00", "12:00")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i, date := range schedule.Dates {
		slots := schedule.Slots[date]
		if i == 1 {
			if !reflect.DeepEqual(slots, []string{"09:00", "10:00", "11:00"}) {
				t.Fatalf("monday slots = %v", slots)
			}
			continue
		}
		if len(slots) != 0 {
			t.Fatalf("date %s slots = %v, want none", date, slots)
		}
	}
}

func TestCopyToWeekdays(t *testing.T) {
	source := rule(time.Monday, "09:00", "17:00")
	source.ID = "orig"

	copies := CopyToWeekdays([]Rule{source}, time.Monday)
	if len(copies) != 6 {
		t.Fatalf("copies = %d, want 6", len(copies))
	}

	seen := map[time.Weekday]bool{}
	for _, c := range copies {
		if c.Weekday == time.Monday {
			t.Fatalf("copy targeted the source weekday: %+v", c)
		}
		if seen[c.Weekday] {
			t.Fatalf("duplicate weekday %v", c.Weekday)
		}
		seen[c.Weekday] = true
		if c.StartMinute != source.StartMinute || c.EndMinute != source.EndMinute {
			t.Fatalf("copy window = %d-%d, want %d-%d", c.StartMinute, c.EndMinute, source.StartMinute, source.EndMinute)
		}
		if c.ID != "" {
			t.Fatalf("copy kept source id %q", c.ID)
		}
	}
	if source.ID != "orig" || source.Weekday != time.Monday {
		t.Fatalf("source rule mutated: %+v", source)
	}
}

func TestExcludeRemovesBookedMarks(t *testing.T) {
	schedule, err := Resolve("mentor-1", sunday, 7, []Rule{rule(time.Monday, "09:00", "12:00")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	Exclude(schedule, map[string][]string{
		"2026-03-02": {"10:00"},
		"2026-03-03": {"09:00"}, // nothing offered that day, must be a no-op
	})

	got := schedule.Slots["2026-03-02"]
	want := []string{"09:00", "11:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("monday slots after exclude = %v, want %v", got, want)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: "00:00", want: 0},
		{in: "23:59", want: 1439},
		{in: "24:00", want: 1440},
		{in: " 9:30 ", want: 570},
		{in: "24:01", wantErr: true},
		{in: "09", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "-1:00", wantErr: true},
		{in: "ab:cd", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(540); got != "09:00" {
		t.Fatalf("FormatClock(540) = %q", got)
	}
	if got := FormatClock(1439); got != "23:59" {
		t.Fatalf("FormatClock(1439) = %q", got)
	}
}
