package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAbsoluteConvertsWallClock(t *testing.T) {
	w, err := ParseWallClock("2024-03-04T10:00")
	require.NoError(t, err)

	instant, err := ToAbsolute(w, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC), instant)
	assert.Equal(t, time.UTC, instant.Location())

	back, err := ToLocal(instant, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, w, back)
}

func TestLoadLocationRejectsAmbientAndUnknownZones(t *testing.T) {
	for _, id := range []string{"", "  ", "Local", "Mars/Olympus_Mons"} {
		_, err := LoadLocation(id)
		assert.ErrorIs(t, err, ErrInvalidTimezone, id)
	}

	_, err := ToAbsolute(Date(2024, 3, 4, 10, 0), "Not/AZone")
	assert.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestLoadLocationMemoises(t *testing.T) {
	first, err := LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	second, err := LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestToAbsoluteRejectsSpringForwardGap(t *testing.T) {
	_, err := ToAbsolute(Date(2024, 3, 10, 2, 30), "America/New_York")
	assert.ErrorIs(t, err, ErrNonexistentLocalTime)

	loc, err := LoadLocation("America/New_York")
	require.NoError(t, err)
	instant, exact := Resolve(Date(2024, 3, 10, 2, 30), loc)
	assert.False(t, exact)
	assert.Equal(t, time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC), instant)
}

func TestToAbsoluteResolvesFallBackToFirstOccurrence(t *testing.T) {
	instant, err := ToAbsolute(Date(2024, 11, 3, 1, 30), "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC), instant)
}

func TestParseWallClockRejectsOffsets(t *testing.T) {
	_, err := ParseWallClock("2024-03-04T10:00:00Z")
	assert.ErrorIs(t, err, ErrInvalidWallClock)

	_, err = ParseWallClock("2024-03-04T10:00:00+02:00")
	assert.ErrorIs(t, err, ErrInvalidWallClock)

	w, err := ParseWallClock("2024-03-04T10:00:30")
	require.NoError(t, err)
	assert.Equal(t, 30, w.Second)
}

func TestWallClockCalendarArithmetic(t *testing.T) {
	w := Date(2024, 1, 31, 10, 0)
	assert.Equal(t, Date(2024, 2, 1, 10, 0), w.AddDate(0, 0, 1))
	assert.Equal(t, time.Wednesday, w.Weekday())
	assert.Equal(t, 600, w.MinuteOfDay())
	assert.Equal(t, Date(2024, 1, 31, 0, 0), w.DateOnly())
	assert.True(t, w.Before(w.AddDate(0, 0, 1)))
}

func TestParseTimeOfDay(t *testing.T) {
	cases := map[string]int{"00:00": 0, "09:30": 570, "23:59": 1439, "24:00": 1440}
	for raw, want := range cases {
		got, err := ParseTimeOfDay(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"9:00", "25:00", "12:60", "noon", ""} {
		_, err := ParseTimeOfDay(raw)
		assert.Error(t, err, raw)
	}

	assert.Equal(t, "09:30", FormatTimeOfDay(570))
}
