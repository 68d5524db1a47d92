package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitcraft/internal/constants"
)

// Clock supplies the current time. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == constants.DefaultTimezone {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	if timezone == "" || timezone == constants.DefaultTimezone {
		return true
	}
	_, err := time.LoadLocation(timezone)
	return err == nil
}

// DateKey returns the calendar-day key (YYYY-MM-DD) of t in loc.
// A nil loc means the system local timezone.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(constants.DateFormat)
}

// Today returns the calendar-day key for the clock's current time in loc.
func Today(clock Clock, loc *time.Location) string {
	return DateKey(clock.Now(), loc)
}

// ParseDateKey parses a calendar-day key and returns midnight of that day in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.Parse(constants.DateFormat, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q (expected YYYY-MM-DD): %w", key, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// IsValidDateKey reports whether key is a well-formed calendar-day key.
// time.Parse accepts some non-canonical inputs, so the key must also round-trip.
func IsValidDateKey(key string) bool {
	t, err := time.Parse(constants.DateFormat, key)
	if err != nil {
		return false
	}
	return t.Format(constants.DateFormat) == key
}

// AddDays shifts a calendar-day key by n days using calendar arithmetic,
// so DST transitions never skip or repeat a day.
func AddDays(key string, n int) (string, error) {
	t, err := time.Parse(constants.DateFormat, key)
	if err != nil {
		return "", fmt.Errorf("invalid date key %q: %w", key, err)
	}
	return t.AddDate(0, 0, n).Format(constants.DateFormat), nil
}

// DaysBetween returns the number of calendar days from the date of from to the
// date of to, both taken in loc. Negative when to is before from.
func DaysBetween(from, to time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	f := from.In(loc)
	t := to.In(loc)
	// Compare at UTC midnight so the difference is an exact multiple of 24h.
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}

// Weekday returns the weekday of a calendar-day key.
func Weekday(key string) (time.Weekday, error) {
	t, err := time.Parse(constants.DateFormat, key)
	if err != nil {
		return time.Sunday, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	return t.Weekday(), nil
}
