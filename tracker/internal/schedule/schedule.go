// CLAUDE:SUMMARY Daily check-time parsing, next-run computation and fixed-offset or IANA timezone resolution.
// Package schedule computes the next daily check time and parses the
// service timezone.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"
)

// ErrInvalidClock is returned for malformed "HH:MM" values.
var ErrInvalidClock = errors.New("schedule: invalid clock time")

// ErrInvalidZone is returned when a timezone cannot be resolved.
var ErrInvalidZone = errors.New("schedule: invalid timezone")

// Clock is a time of day, in minutes after midnight.
type Clock int

// ParseClock parses "7:00" or "19:30".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

// ParseClocks parses, sorts and de-duplicates a list of clock times.
func ParseClocks(ss []string) ([]Clock, error) {
	out := make([]Clock, 0, len(ss))
	for _, s := range ss {
		c, err := ParseClock(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// String renders the clock as "15:04".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Kitchen renders the clock as "7:00 AM".
func (c Clock) Kitchen() string {
	return time.Date(2000, 1, 1, int(c)/60, int(c)%60, 0, 0, time.UTC).Format("3:04 PM")
}

// On returns the clock time on the calendar day of day, in loc.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), int(c)/60, int(c)%60, 0, 0, loc)
}

// Next returns the earliest check time strictly after now. With no clocks it
// returns the zero time.
func Next(now time.Time, clocks []Clock, loc *time.Location) time.Time {
	if len(clocks) == 0 {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	var best time.Time
	for _, offset := range []int{0, 1} {
		day := now.In(loc).AddDate(0, 0, offset)
		for _, c := range clocks {
			t := c.On(day, loc)
			if t.After(now) && (best.IsZero() || t.Before(best)) {
				best = t
			}
		}
		if !best.IsZero() {
			return best
		}
	}
	return best
}

var offsetRe = regexp.MustCompile(`^(?:UTC|GMT)?([+-])(\d{1,2})(?::?(\d{2}))?$`)

// DefaultZone is GMT+8, the portal's local time.
var DefaultZone = time.FixedZone("GMT+8", 8*3600)

// ParseZone resolves "+08:00", "GMT+8", "UTC" or an IANA name. Empty means
// DefaultZone.
func ParseZone(s string) (*time.Location, error) {
	if s == "" {
		return DefaultZone, nil
	}
	if m := offsetRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[2])
		mins := 0
		if m[3] != "" {
			mins, _ = strconv.Atoi(m[3])
		}
		if h > 14 || mins > 59 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidZone, s)
		}
		off := h*3600 + mins*60
		if m[1] == "-" {
			off = -off
		}
		return time.FixedZone(ZoneLabel(off), off), nil
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidZone, s, err)
	}
	return loc, nil
}

// ZoneLabel renders an offset in seconds as "GMT+8" or "GMT+5:30".
func ZoneLabel(offset int) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	h, m := offset/3600, offset%3600/60
	if m == 0 {
		return fmt.Sprintf("GMT%s%d", sign, h)
	}
	return fmt.Sprintf("GMT%s%d:%02d", sign, h, m)
}
