package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 2, cfg.Booking.MinNoticeHours)
	assert.Equal(t, 90, cfg.Booking.MaxAdvanceDays)
	assert.Equal(t, 60, cfg.Booking.DefaultDurationMinutes)
	assert.Equal(t, 52, cfg.Booking.MaxRecurrenceOccurrences)
	assert.Equal(t, 15, cfg.Booking.StartWindowMinutes)
	assert.Equal(t, 5*time.Minute, cfg.Availability.CacheTTL)
	assert.Equal(t, "session.events", cfg.Notifications.Queue)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("MIN_BOOKING_NOTICE_HOURS", "4")
	t.Setenv("START_WINDOW_MINUTES", "10")
	t.Setenv("AVAILABILITY_CACHE_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, ,https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Booking.MinNoticeHours)
	assert.Equal(t, 10, cfg.Booking.StartWindowMinutes)
	assert.Equal(t, 5*time.Minute, cfg.Availability.CacheTTL)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
}
