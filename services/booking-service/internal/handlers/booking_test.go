package handlers

import (
	"net/url"
	"testing"
)

func TestExcludeBookedParam(t *testing.T) {
	cases := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{"", false, false},
		{"exclude_booked=true", true, false},
		{"exclude_booked=1", true, false},
		{"exclude_booked=false", false, false},
		{"exclude_booked=banana", false, true},
	}
	for _, tc := range cases {
		q, err := url.ParseQuery(tc.raw)
		if err != nil {
			t.Fatalf("ParseQuery(%q) failed: %v", tc.raw, err)
		}
		got, err := excludeBookedParam(q)
		if tc.wantErr {
			if err == nil {
				t.Errorf("query %q: expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("query %q: unexpected error: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("query %q: got %v, want %v", tc.raw, got, tc.want)
		}
	}
}
