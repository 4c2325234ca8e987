package timeutil

import (
	"testing"
	"time"
)

func TestTimeToMinutes(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"00:00", 0, true},
		{"06:00", 360, true},
		{"9:05", 545, true},
		{"14:00", 840, true},
		{"23:59", 1439, true},
		{"24:00", 1440, true},
		{"24:01", 0, false},
		{"", 0, false},
		{"noon", 0, false},
		{"12", 0, false},
		{"12:5", 0, false},
		{"12:60", 0, false},
		{"ab:cd", 0, false},
		{"-1:00", 0, false},
		{"123:00", 0, false},
		{"+9:00", 0, false},
		{"-0:30", 0, false},
		{"09:+5", 0, false},
		{"9:-5", 0, false},
		{" 9:30 ", 570, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := TimeToMinutes(tc.in)
			if ok != tc.wantOK || got != tc.want {
				t.Errorf("TimeToMinutes(%q) = (%d, %v), want (%d, %v)", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestMinutesToTime(t *testing.T) {
	tests := map[int]string{
		0:    "00:00",
		545:  "09:05",
		1439: "23:59",
		1440: "24:00",
		-5:   "00:00",
	}
	for in, want := range tests {
		if got := MinutesToTime(in); got != want {
			t.Errorf("MinutesToTime(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestDateKeyUsesLocalFields(t *testing.T) {
	zones := []string{"America/Los_Angeles", "UTC", "Asia/Tokyo", "Pacific/Kiritimati"}
	for _, name := range zones {
		loc, err := time.LoadLocation(name)
		if err != nil {
			t.Skipf("tzdata missing for %s: %v", name, err)
		}
		t.Run(name, func(t *testing.T) {
			late := time.Date(2024, time.June, 10, 23, 30, 0, 0, loc)
			if got := DateKey(late); got != "2024-06-10" {
				t.Errorf("DateKey(%v) = %q, want 2024-06-10", late, got)
			}
			early := time.Date(2024, time.June, 10, 0, 15, 0, 0, loc)
			if got := DateKey(early); got != "2024-06-10" {
				t.Errorf("DateKey(%v) = %q, want 2024-06-10", early, got)
			}
		})
	}
}

func TestParseDateKey(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata missing: %v", err)
	}
	got, err := ParseDateKey("2024-03-10", loc)
	if err != nil {
		t.Fatalf("ParseDateKey: %v", err)
	}
	if got.Hour() != 0 || got.Location() != loc || DateKey(got) != "2024-03-10" {
		t.Errorf("ParseDateKey = %v, want local midnight 2024-03-10", got)
	}

	if _, err := ParseDateKey("2024-13-01", loc); err == nil {
		t.Error("expected error for invalid month")
	}
}

func TestClockOf(t *testing.T) {
	ts := time.Date(2024, 6, 10, 7, 4, 59, 0, time.UTC)
	if got := ClockOf(ts); got != "07:04" {
		t.Errorf("ClockOf = %q, want 07:04", got)
	}
}
