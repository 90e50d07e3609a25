package service

import (
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/timezone"
)

type minuteSpan struct {
	start int
	end   int
}

// WeeklySchedule is a tutor's compiled weekly open hours in a single zone.
type WeeklySchedule struct {
	loc  *time.Location
	tzID string
	days [7][]minuteSpan
}

// NewWeeklySchedule compiles windows into per-weekday merged spans. Every window must share
// one timezone. An empty window list yields a schedule that is never open.
func NewWeeklySchedule(windows []models.AvailabilityWindow) (*WeeklySchedule, error) {
	s := &WeeklySchedule{}
	for _, w := range windows {
		if s.tzID == "" {
			loc, err := timezone.LoadLocation(w.Timezone)
			if err != nil {
				return nil, err
			}
			s.loc, s.tzID = loc, w.Timezone
		} else if w.Timezone != s.tzID {
			return nil, fmt.Errorf("availability windows mix timezones %q and %q", s.tzID, w.Timezone)
		}
		if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
			return nil, fmt.Errorf("invalid day of week %d", w.DayOfWeek)
		}
		start, err := timezone.ParseTimeOfDay(w.StartTime)
		if err != nil {
			return nil, err
		}
		end, err := timezone.ParseTimeOfDay(w.EndTime)
		if err != nil {
			return nil, err
		}
		if end <= start {
			return nil, fmt.Errorf("window %s-%s ends before it starts", w.StartTime, w.EndTime)
		}
		s.days[w.DayOfWeek] = append(s.days[w.DayOfWeek], minuteSpan{start: start, end: end})
	}
	for d := range s.days {
		s.days[d] = mergeSpans(s.days[d])
	}
	return s, nil
}

func mergeSpans(spans []minuteSpan) []minuteSpan {
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []minuteSpan{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}
	return merged
}

// Timezone returns the zone the windows were authored in.
func (s *WeeklySchedule) Timezone() string { return s.tzID }

// Location returns the loaded zone, nil for an empty schedule.
func (s *WeeklySchedule) Location() *time.Location { return s.loc }

// Open lazily yields the open intervals inside [from, to), merged across window and midnight
// boundaries and clipped to the range. The sequence is finite and can be ranged over again.
func (s *WeeklySchedule) Open(from, to time.Time) iter.Seq[models.Interval] {
	return func(yield func(models.Interval) bool) {
		if s == nil || s.loc == nil || !from.Before(to) {
			return
		}
		day := timezone.InLocation(from, s.loc).DateOnly().AddDate(0, 0, -1)
		last := timezone.InLocation(to, s.loc).DateOnly()

		var pending *models.Interval
		emit := func(iv models.Interval) bool {
			if iv.Start.Before(from) {
				iv.Start = from
			}
			if iv.End.After(to) {
				iv.End = to
			}
			if !iv.Start.Before(iv.End) {
				return true
			}
			return yield(iv)
		}

		for !last.Before(day) {
			for _, sp := range s.days[day.Weekday()] {
				iv := s.materialize(day, sp)
				if !iv.Start.Before(iv.End) {
					continue
				}
				if pending != nil && !iv.Start.After(pending.End) {
					if iv.End.After(pending.End) {
						pending.End = iv.End
					}
					continue
				}
				if pending != nil && !emit(*pending) {
					return
				}
				next := iv
				pending = &next
			}
			if pending != nil && !pending.End.Before(to) {
				break
			}
			day = day.AddDate(0, 0, 1)
		}
		if pending != nil {
			emit(*pending)
		}
	}
}

func (s *WeeklySchedule) materialize(day timezone.WallClock, sp minuteSpan) models.Interval {
	start, _ := timezone.Resolve(timezone.Date(day.Year, day.Month, day.Day, 0, sp.start), s.loc)
	end, _ := timezone.Resolve(timezone.Date(day.Year, day.Month, day.Day, 0, sp.end), s.loc)
	return models.Interval{Start: start, End: end}
}

// Covers reports whether [start, start+duration) lies entirely inside one merged open interval.
func (s *WeeklySchedule) Covers(start time.Time, duration time.Duration) bool {
	end := start.Add(duration)
	for iv := range s.Open(start, end) {
		return iv.Start.Equal(start) && iv.End.Equal(end)
	}
	return false
}

// OpenWindows enumerates the open intervals of windows inside [rangeStart, rangeEnd). Invalid
// window sets yield nothing.
func OpenWindows(windows []models.AvailabilityWindow, rangeStart, rangeEnd time.Time) iter.Seq[models.Interval] {
	schedule, err := NewWeeklySchedule(windows)
	if err != nil {
		return func(func(models.Interval) bool) {}
	}
	return schedule.Open(rangeStart, rangeEnd)
}

// WindowsCover reports whether windows fully contain [start, start+duration).
func WindowsCover(windows []models.AvailabilityWindow, start time.Time, duration time.Duration) bool {
	schedule, err := NewWeeklySchedule(windows)
	if err != nil {
		return false
	}
	return schedule.Covers(start, duration)
}
