// Package timezone converts between absolute instants and local wall-clock
// readings. Every conversion takes the zone explicitly; there is no fallback
// to the process zone.
package timezone

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	// ErrInvalidTimezone is returned for empty, ambient or unknown zone ids.
	ErrInvalidTimezone = errors.New("timezone: invalid timezone")
	// ErrNonexistentLocalTime is returned when a wall-clock reading falls in a DST gap.
	ErrNonexistentLocalTime = errors.New("timezone: local time does not exist in zone")
	// ErrInvalidWallClock is returned when a wall-clock string cannot be parsed.
	ErrInvalidWallClock = errors.New("timezone: invalid wall-clock time")
)

var wallClockLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05"}

// WallClock is a calendar date plus time of day with no zone attached.
type WallClock struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

// ParseWallClock reads a "2006-01-02T15:04[:05]" string. Offsets and zone
// suffixes are rejected so an instant can never pass as a wall-clock reading.
func ParseWallClock(raw string) (WallClock, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range wallClockLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return fromTime(t), nil
		}
	}
	return WallClock{}, fmt.Errorf("%w: %q", ErrInvalidWallClock, raw)
}

// Date builds a wall-clock reading from its fields, normalising overflow.
func Date(year int, month time.Month, day, hour, minute int) WallClock {
	return fromTime(time.Date(year, month, day, hour, minute, 0, 0, time.UTC))
}

func fromTime(t time.Time) WallClock {
	return WallClock{
		Year:   t.Year(),
		Month:  t.Month(),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// naive places the reading on a UTC timeline so calendar arithmetic never
// observes an offset change.
func (w WallClock) naive() time.Time {
	return time.Date(w.Year, w.Month, w.Day, w.Hour, w.Minute, w.Second, 0, time.UTC)
}

func (w WallClock) String() string {
	return w.naive().Format("2006-01-02T15:04:05")
}

// Weekday returns the calendar weekday of the reading.
func (w WallClock) Weekday() time.Weekday {
	return w.naive().Weekday()
}

// AddDate moves the reading by calendar units, keeping the time of day.
func (w WallClock) AddDate(years, months, days int) WallClock {
	return fromTime(w.naive().AddDate(years, months, days))
}

// AddSeconds moves the reading by n seconds of wall-clock time.
func (w WallClock) AddSeconds(n int) WallClock {
	return fromTime(w.naive().Add(time.Duration(n) * time.Second))
}

// Before reports whether w is earlier than other on the calendar.
func (w WallClock) Before(other WallClock) bool {
	return w.naive().Before(other.naive())
}

// DateOnly truncates the reading to midnight.
func (w WallClock) DateOnly() WallClock {
	return WallClock{Year: w.Year, Month: w.Month, Day: w.Day}
}

// MinuteOfDay returns minutes elapsed since local midnight.
func (w WallClock) MinuteOfDay() int {
	return w.Hour*60 + w.Minute
}

var locations sync.Map

// LoadLocation resolves an IANA zone id. Results are memoised per id.
func LoadLocation(id string) (*time.Location, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.EqualFold(id, "local") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, id)
	}
	if cached, ok := locations.Load(id); ok {
		return cached.(*time.Location), nil
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, id)
	}
	actual, _ := locations.LoadOrStore(id, loc)
	return actual.(*time.Location), nil
}

// ToAbsolute converts a wall-clock reading in the named zone to a UTC instant.
func ToAbsolute(w WallClock, tzID string) (time.Time, error) {
	loc, err := LoadLocation(tzID)
	if err != nil {
		return time.Time{}, err
	}
	instant, exact := Resolve(w, loc)
	if !exact {
		return time.Time{}, fmt.Errorf("%w: %s in %s", ErrNonexistentLocalTime, w, tzID)
	}
	return instant, nil
}

// ToLocal converts a UTC instant to the wall-clock reading in the named zone.
func ToLocal(instant time.Time, tzID string) (WallClock, error) {
	loc, err := LoadLocation(tzID)
	if err != nil {
		return WallClock{}, err
	}
	return fromTime(instant.In(loc)), nil
}

// InLocation converts an instant using an already loaded zone.
func InLocation(instant time.Time, loc *time.Location) WallClock {
	return fromTime(instant.In(loc))
}

// ambiguityProbe covers the largest DST shift in the tz database (Lord Howe uses 30 minutes, the
// rest one hour; a handful of historical shifts reach two).
var ambiguityProbe = []time.Duration{30 * time.Minute, time.Hour, 90 * time.Minute, 2 * time.Hour}

// Resolve maps a reading to an instant in loc. exact is false when the reading
// falls in a DST gap; the returned instant is then the reading shifted forward
// by the gap. Readings repeated by a fall-back transition resolve to the earlier
// instant.
func Resolve(w WallClock, loc *time.Location) (time.Time, bool) {
	candidate := time.Date(w.Year, w.Month, w.Day, w.Hour, w.Minute, w.Second, 0, loc)
	if fromTime(candidate) != w {
		shifted := shiftOutOfGap(w, loc)
		return shifted.UTC(), false
	}

	earliest := candidate
	for _, d := range ambiguityProbe {
		probe := candidate.Add(-d)
		if fromTime(probe.In(loc)) == w {
			earliest = probe
		}
	}
	return earliest.UTC(), true
}

func shiftOutOfGap(w WallClock, loc *time.Location) time.Time {
	// Applying the offset in force before the transition lands past the gap by exactly its length.
	_, before := time.Date(w.Year, w.Month, w.Day, w.Hour, w.Minute, w.Second, 0, loc).Add(-24 * time.Hour).Zone()
	return w.naive().Add(-time.Duration(before) * time.Second).In(loc)
}

// ParseTimeOfDay parses "HH:MM" into minutes since midnight. "24:00" is
// accepted as the end of the day.
func ParseTimeOfDay(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "24:00" {
		return 24 * 60, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil || len(raw) != 5 {
		return 0, fmt.Errorf("%w: time of day %q", ErrInvalidWallClock, raw)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatTimeOfDay renders minutes since midnight as "HH:MM".
func FormatTimeOfDay(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
