package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/timezone"
)

// DefaultRecurrenceCap bounds every series when no cap is configured.
const DefaultRecurrenceCap = 52

// ErrInvalidRecurrence wraps every recurrence pattern validation failure.
var ErrInvalidRecurrence = errors.New("invalid recurrence")

// ExpandRecurrence returns the ordered series of start instants for a seed and pattern. The seed
// is always the first element. Calendar arithmetic happens on the wall clock of loc, so a 10:00
// session stays at 10:00 across DST changes. The series stops at the inclusive EndDate, at
// MaxOccurrences (which counts the seed) or at hardCap, whichever comes first.
func ExpandRecurrence(seedStart time.Time, loc *time.Location, pattern models.RecurrencePattern, hardCap int) ([]time.Time, error) {
	if loc == nil {
		return nil, fmt.Errorf("%w: missing timezone", ErrInvalidRecurrence)
	}
	if hardCap <= 0 {
		hardCap = DefaultRecurrenceCap
	}
	interval := pattern.Interval
	if interval == 0 {
		interval = 1
	}
	if interval < 0 {
		return nil, fmt.Errorf("%w: interval must be at least 1", ErrInvalidRecurrence)
	}

	limit := hardCap
	if pattern.MaxOccurrences < 0 {
		return nil, fmt.Errorf("%w: max_occurrences must be positive", ErrInvalidRecurrence)
	}
	if pattern.MaxOccurrences > hardCap {
		return nil, fmt.Errorf("%w: max_occurrences must not exceed %d", ErrInvalidRecurrence, hardCap)
	}
	if pattern.MaxOccurrences > 0 {
		limit = pattern.MaxOccurrences
	}

	seed := timezone.InLocation(seedStart, loc)

	var endDate *timezone.WallClock
	if pattern.EndDate != "" {
		parsed, err := time.Parse("2006-01-02", pattern.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidRecurrence)
		}
		d := timezone.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0)
		if d.Before(seed.DateOnly()) {
			return nil, fmt.Errorf("%w: end_date is before the first session", ErrInvalidRecurrence)
		}
		endDate = &d
	}

	var next func() timezone.WallClock
	switch pattern.Frequency {
	case models.FrequencyDaily:
		if len(pattern.DaysOfWeek) > 0 {
			return nil, fmt.Errorf("%w: days_of_week only applies to weekly series", ErrInvalidRecurrence)
		}
		k := 0
		next = func() timezone.WallClock {
			k++
			return seed.AddDate(0, 0, k*interval)
		}
	case models.FrequencyWeekly:
		days, err := weekdayMask(pattern.DaysOfWeek, seed.Weekday())
		if err != nil {
			return nil, err
		}
		next = weeklyCursor(seed, interval, days)
	case models.FrequencyMonthly:
		if len(pattern.DaysOfWeek) > 0 {
			return nil, fmt.Errorf("%w: days_of_week only applies to weekly series", ErrInvalidRecurrence)
		}
		k := 0
		next = func() timezone.WallClock {
			k++
			return addMonthsClamped(seed, k*interval)
		}
	default:
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrence, pattern.Frequency)
	}

	series := []time.Time{seedStart.UTC()}
	for len(series) < limit {
		local := next()
		if endDate != nil && endDate.Before(local.DateOnly()) {
			break
		}
		instant, _ := timezone.Resolve(local, loc)
		series = append(series, instant)
	}
	return series, nil
}

func weekdayMask(days []time.Weekday, fallback time.Weekday) ([]time.Weekday, error) {
	if len(days) == 0 {
		return []time.Weekday{fallback}, nil
	}
	seen := map[time.Weekday]bool{}
	mask := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return nil, fmt.Errorf("%w: day of week %d out of range", ErrInvalidRecurrence, d)
		}
		if !seen[d] {
			seen[d] = true
			mask = append(mask, d)
		}
	}
	sort.Slice(mask, func(i, j int) bool { return mask[i] < mask[j] })
	return mask, nil
}

// weeklyCursor yields the mask days of every interval-th week after the seed. Weeks start on
// the Sunday on or before the seed.
func weeklyCursor(seed timezone.WallClock, interval int, mask []time.Weekday) func() timezone.WallClock {
	seedDate := seed.DateOnly()
	weekStart := seedDate.AddDate(0, 0, -int(seed.Weekday()))
	week, idx := 0, 0
	return func() timezone.WallClock {
		for {
			if idx == len(mask) {
				idx = 0
				week += interval
			}
			day := weekStart.AddDate(0, 0, week*7+int(mask[idx]))
			idx++
			if seedDate.Before(day) {
				return timezone.Date(day.Year, day.Month, day.Day, seed.Hour, seed.Minute).AddSeconds(seed.Second)
			}
		}
	}
}

func addMonthsClamped(seed timezone.WallClock, months int) timezone.WallClock {
	first := timezone.Date(seed.Year, seed.Month+time.Month(months), 1, seed.Hour, seed.Minute)
	day := seed.Day
	if last := daysIn(first.Year, first.Month); day > last {
		day = last
	}
	return timezone.Date(first.Year, first.Month, day, seed.Hour, seed.Minute).AddSeconds(seed.Second)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
