package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/room-reservation-api/pkg/scheduler"
)

type stubCleaner struct {
	ttl     time.Duration
	deleted []string
	err     error
}

func (s *stubCleaner) Cleanup(ttl time.Duration) ([]string, error) {
	s.ttl = ttl
	return s.deleted, s.err
}

type stubPurger struct {
	before time.Time
	n      int64
}

func (s *stubPurger) PurgeRefreshTokens(_ context.Context, before time.Time) (int64, error) {
	s.before = before
	return s.n, nil
}

type recordingScheduler struct {
	names []string
}

func (r *recordingScheduler) Every(name string, _ time.Duration, _ scheduler.Task) error {
	r.names = append(r.names, name)
	return nil
}

func TestHousekeepingPurges(t *testing.T) {
	cleaner := &stubCleaner{deleted: []string{"a.csv"}}
	purger := &stubPurger{n: 3}
	svc := NewHousekeepingService(cleaner, purger, nil)
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.PurgeExports(context.Background()))
	assert.Equal(t, time.Duration(0), cleaner.ttl)
	require.NoError(t, svc.PurgeRefreshTokens(context.Background()))
	assert.Equal(t, now, purger.before)

	cleaner.err = errors.New("disk")
	assert.Error(t, svc.PurgeExports(context.Background()))
}

func TestHousekeepingWithoutDependencies(t *testing.T) {
	svc := NewHousekeepingService(nil, nil, nil)
	assert.NoError(t, svc.PurgeExports(context.Background()))
	assert.NoError(t, svc.PurgeRefreshTokens(context.Background()))
}

func TestHousekeepingSchedulesJobs(t *testing.T) {
	sched := &recordingScheduler{}
	require.NoError(t, NewHousekeepingService(nil, nil, nil).Schedule(sched, time.Hour))
	assert.Equal(t, []string{"exports.cleanup", "refresh_tokens.purge"}, sched.names)
}
