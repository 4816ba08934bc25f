package utils

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

var location = time.UTC

// SetLocation changes the zone used by TimeNow. An unknown name leaves the
// current zone untouched and returns the error.
func SetLocation(name string) error {
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load location %q: %w", name, err)
	}
	location = loc
	return nil
}

func Location() *time.Location {
	return location
}

func TimeNow() time.Time {
	return time.Now().In(location)
}

// TruncateToDay drops the clock part of t, keeping its location.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

func MustParseDate(value string) time.Time {
	t, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return t
}

// DaysAgo returns midnight UTC of the day n days before today.
func DaysAgo(n int) time.Time {
	now := time.Now().UTC()
	return TruncateToDay(now).AddDate(0, 0, -n)
}

func PrettyDate(date time.Time) string {
	return date.Format("02 Jan 2006 - 15:04 MST")
}
