package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/cache"
)

type brokenStore struct{ err error }

func (b brokenStore) Get(ctx context.Context, key string, dest interface{}) error { return b.err }

func (b brokenStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return b.err
}

func (b brokenStore) Delete(ctx context.Context, keys ...string) error { return b.err }

func TestCacheServiceSnapshotRoundTrip(t *testing.T) {
	mem := &memoryCache{data: map[string][]byte{}}
	svc := NewCacheService(mem, NewMetricsService(), 0, nil, true)
	key := cache.AvailabilityKey("tutor-1")
	ctx := context.Background()

	var got []models.AvailabilityWindow
	hit, err := svc.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, key, mondayMorning("tutor-1"), 0))
	hit, err = svc.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, mondayMorning("tutor-1"), got)

	require.NoError(t, svc.Invalidate(ctx, key))
	assert.Equal(t, []string{key}, mem.deleted)
	require.NoError(t, svc.Invalidate(ctx))
	assert.Len(t, mem.deleted, 1)
}

func TestCacheServiceSwitchedOff(t *testing.T) {
	mem := &memoryCache{data: map[string][]byte{}}
	ctx := context.Background()
	for name, svc := range map[string]*CacheService{
		"disabled": NewCacheService(mem, nil, time.Minute, zap.NewNop(), false),
		"no store": NewCacheService(nil, nil, time.Minute, zap.NewNop(), true),
		"nil":      nil,
	} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, svc.Enabled())
			require.NoError(t, svc.Set(ctx, "k", 1, 0))
			hit, err := svc.Get(ctx, "k", new(int))
			require.NoError(t, err)
			assert.False(t, hit)
			require.NoError(t, svc.Invalidate(ctx, "k"))
		})
	}
	assert.Empty(t, mem.data)
}

func TestCacheServiceStoreFailureIsAMiss(t *testing.T) {
	down := errors.New("connection refused")
	svc := NewCacheService(brokenStore{err: down}, NewMetricsService(), time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	hit, err := svc.Get(ctx, "k", new(int))
	assert.False(t, hit)
	assert.ErrorIs(t, err, down)
	assert.ErrorIs(t, svc.Set(ctx, "k", 1, 0), down)
	assert.ErrorIs(t, svc.Invalidate(ctx, "k"), down)
}
