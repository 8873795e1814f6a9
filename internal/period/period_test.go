package period

import (
	"testing"
	"time"
)

func TestDailyUsesUTCPlus8(t *testing.T) {
	// 2024-03-09 16:30 UTC is already 2024-03-10 in UTC+8.
	ts := time.Date(2024, 3, 9, 16, 30, 0, 0, time.UTC)
	if got := Daily(ts); got != "2024-03-10" {
		t.Fatalf("Daily() = %q, want 2024-03-10", got)
	}
	ts = time.Date(2024, 3, 9, 15, 59, 59, 0, time.UTC)
	if got := Daily(ts); got != "2024-03-09" {
		t.Fatalf("Daily() = %q, want 2024-03-09", got)
	}
}

func TestMonthlyBoundary(t *testing.T) {
	ts := time.Date(2024, 1, 31, 16, 0, 0, 0, time.UTC)
	if got := Monthly(ts); got != "2024-02" {
		t.Fatalf("Monthly() = %q, want 2024-02", got)
	}
}

func TestWeekly(t *testing.T) {
	tests := []struct {
		unix int64
		want string
	}{
		{WeekEpoch, "W0"},
		{WeekEpoch + weekDuration - 1, "W0"},
		{WeekEpoch + weekDuration, "W1"},
		{WeekEpoch + 108*weekDuration + 5, "W108"},
		{WeekEpoch - 1, "W-1"},
	}
	for _, tt := range tests {
		if got := Weekly(time.Unix(tt.unix, 0)); got != tt.want {
			t.Fatalf("Weekly(%d) = %q, want %q", tt.unix, got, tt.want)
		}
	}
}

func TestAtIsStableWithinPeriod(t *testing.T) {
	a := At(time.Date(2024, 5, 1, 0, 0, 1, 0, zone))
	b := At(time.Date(2024, 5, 1, 23, 59, 59, 0, zone))
	if a != b {
		t.Fatalf("periods differ within one day: %+v vs %+v", a, b)
	}
	c := At(time.Date(2024, 5, 2, 0, 0, 0, 0, zone))
	if c.Daily == a.Daily {
		t.Fatalf("daily period did not change across boundary: %q", c.Daily)
	}
}

func TestClockProvider(t *testing.T) {
	p := ClockProvider{Now: func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, zone) }}
	got := p.Current()
	if got.Daily != "2024-01-01" || got.Weekly != "W0" || got.Monthly != "2024-01" {
		t.Fatalf("Current() = %+v", got)
	}
}
