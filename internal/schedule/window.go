package schedule

import (
	"fmt"
	"time"
)

// DefaultReturnTime is the implicit curfew when a request states no return
// time: 02:00 the following day. Configure can override it per deployment.
const DefaultReturnTime = "02:00"

// maxWindow bounds a single authorization window. Overnight wrap can push a
// window past midnight but never anywhere near this; anything larger is a
// data error, not a schedule.
const maxWindow = 30 * time.Hour

var (
	defaultReturn = DefaultReturnTime
	location      = time.UTC
)

// Configure applies deployment overrides for the implicit return time and
// the campus timezone. Empty values keep the defaults (02:00, UTC). Must be
// called once at startup, before any window math runs.
func Configure(defaultReturnTime, timezone string) error {
	if defaultReturnTime != "" {
		if _, _, err := ParseClock(defaultReturnTime); err != nil {
			return err
		}
		defaultReturn = defaultReturnTime
	}
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
		location = loc
	}
	return nil
}

// DefaultReturn returns the effective implicit return time.
func DefaultReturn() string { return defaultReturn }

// ParseDate parses a YYYY-MM-DD authorization date in the campus timezone,
// so window instants land on campus wall-clock time wherever the server runs.
func ParseDate(raw string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", raw, location)
}

// ParseClock parses a local "HH:MM" wall-clock string.
func ParseClock(raw string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q, expected HH:MM", raw)
	}
	return t.Hour(), t.Minute(), nil
}

// at anchors a wall-clock time onto a calendar day, keeping the day's location.
func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

// ResolveWindow computes the [exit, return] interval for an authorization.
// returnTime nil means DefaultReturnTime. When the resolved return instant is
// not after the exit instant the return date rolls forward one day (overnight
// wrap). Shared by kiosk activation and late-return math so the two can never
// disagree on what "the window" is.
func ResolveWindow(date time.Time, exitTime string, returnTime *string) (start, end time.Time, err error) {
	exitHour, exitMinute, err := ParseClock(exitTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	ret := defaultReturn
	if returnTime != nil && *returnTime != "" {
		ret = *returnTime
	}
	retHour, retMinute, err := ParseClock(ret)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start = at(date, exitHour, exitMinute)
	end = at(date, retHour, retMinute)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	if end.Sub(start) > maxWindow {
		return time.Time{}, time.Time{}, fmt.Errorf("window exceeds %s", maxWindow)
	}
	return start, end, nil
}

// InWindow reports whether now falls within [start, end] inclusive.
func InWindow(now, start, end time.Time) bool {
	return !now.Before(start) && !now.After(end)
}

// TokenExpiry returns the hard token expiry for an authorization date: the
// implicit curfew (02:00 unless configured otherwise) the following day,
// regardless of the stated return time. Deliberate slack so a token stays
// verifiable through a late return; expected return is computed separately
// by ExpectedReturn.
func TokenExpiry(date time.Time) time.Time {
	hour, minute, _ := ParseClock(defaultReturn)
	return at(date.AddDate(0, 0, 1), hour, minute)
}

// ExpectedReturn computes when a student who exited at verifiedAt was due
// back. The stated return time is anchored to verifiedAt's calendar day and
// rolls one day forward when it lands at or before the exit instant.
func ExpectedReturn(verifiedAt time.Time, returnTime *string) (time.Time, error) {
	ret := defaultReturn
	if returnTime != nil && *returnTime != "" {
		ret = *returnTime
	}
	hour, minute, err := ParseClock(ret)
	if err != nil {
		return time.Time{}, err
	}
	expected := at(verifiedAt, hour, minute)
	if !expected.After(verifiedAt) {
		expected = expected.AddDate(0, 0, 1)
	}
	return expected, nil
}

// Lateness compares a check-in instant against the expected return.
func Lateness(now, expectedReturn time.Time) (isLate bool, lateMinutes int) {
	if !now.After(expectedReturn) {
		return false, 0
	}
	return true, int(now.Sub(expectedReturn).Minutes())
}
