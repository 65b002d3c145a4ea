package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestParseClocks(t *testing.T) {
	got, err := ParseClocks([]string{"19:00", "7:00", "07:00"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0].String() != "07:00" || got[1].String() != "19:00" {
		t.Fatalf("got %v", got)
	}
	if got[1].Kitchen() != "7:00 PM" {
		t.Fatalf("kitchen: got %q", got[1].Kitchen())
	}
	for _, bad := range []string{"25:00", "7", "noon", ""} {
		if _, err := ParseClock(bad); !errors.Is(err, ErrInvalidClock) {
			t.Errorf("%q: got %v, want ErrInvalidClock", bad, err)
		}
	}
}

func TestNext(t *testing.T) {
	// WHAT: The next check is the first configured time strictly after now.
	// WHY: Polls must happen at the fixed local times, rolling over to tomorrow.
	loc := DefaultZone
	clocks, _ := ParseClocks([]string{"07:00", "19:00"})

	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2025, 3, 1, 6, 59, 0, 0, loc), time.Date(2025, 3, 1, 7, 0, 0, 0, loc)},
		{time.Date(2025, 3, 1, 7, 0, 0, 0, loc), time.Date(2025, 3, 1, 19, 0, 0, 0, loc)},
		{time.Date(2025, 3, 1, 12, 0, 0, 0, loc), time.Date(2025, 3, 1, 19, 0, 0, 0, loc)},
		{time.Date(2025, 3, 1, 19, 0, 1, 0, loc), time.Date(2025, 3, 2, 7, 0, 0, 0, loc)},
		{time.Date(2025, 12, 31, 23, 0, 0, 0, loc), time.Date(2026, 1, 1, 7, 0, 0, 0, loc)},
		// now expressed in UTC: 23:30 UTC is 07:30 next day in GMT+8.
		{time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC), time.Date(2025, 3, 2, 19, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		got := Next(tt.now, clocks, loc)
		if !got.Equal(tt.want) {
			t.Errorf("Next(%v): got %v, want %v", tt.now, got, tt.want)
		}
	}
	if !Next(time.Now(), nil, loc).IsZero() {
		t.Fatal("no clocks should yield zero time")
	}
}

func TestParseZone(t *testing.T) {
	tests := []struct {
		in     string
		offset int
	}{
		{"", 8 * 3600},
		{"+08:00", 8 * 3600},
		{"GMT+8", 8 * 3600},
		{"-05:30", -(5*3600 + 30*60)},
		{"UTC", 0},
	}
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		loc, err := ParseZone(tt.in)
		if err != nil {
			t.Fatalf("%q: %v", tt.in, err)
		}
		if _, off := ref.In(loc).Zone(); off != tt.offset {
			t.Errorf("%q: offset got %d, want %d", tt.in, off, tt.offset)
		}
	}
	if _, err := ParseZone("Mars/Olympus"); !errors.Is(err, ErrInvalidZone) {
		t.Fatalf("unknown zone: got %v", err)
	}
	if _, err := ParseZone("+15:00"); !errors.Is(err, ErrInvalidZone) {
		t.Fatalf("out of range offset: got %v", err)
	}
	if ZoneLabel(19800) != "GMT+5:30" || ZoneLabel(-3600) != "GMT-1" {
		t.Fatal("zone label")
	}
}
