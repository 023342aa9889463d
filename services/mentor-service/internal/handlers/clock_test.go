package handlers

import "testing"

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:00", want: 540},
		{in: "17:30", want: 1050},
		{in: "24:00", want: 1440},
		{in: "24:30", wantErr: true},
		{in: "9", wantErr: true},
		{in: "09:99", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseClock(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatClockRoundTrip(t *testing.T) {
	for _, m := range []int{0, 540, 1050, 1439} {
		got, err := parseClock(formatClock(m))
		if err != nil {
			t.Fatalf("round trip %d: %v", m, err)
		}
		if got != m {
			t.Fatalf("round trip %d = %d", m, got)
		}
	}
}
