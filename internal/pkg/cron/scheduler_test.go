package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	s.AddJob("tick", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_StopsWithParentContext(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	s.AddJob("tick", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

type fakeCloser struct {
	calls  int
	closed int
	err    error
	at     time.Time
}

func (f *fakeCloser) CloseStaleSessions(_ context.Context, now time.Time) (int, error) {
	f.calls++
	f.at = now
	return f.closed, f.err
}

func TestAttendanceJobs_CloseStaleSessions(t *testing.T) {
	closer := &fakeCloser{closed: 2}
	jobs := NewAttendanceJobs(closer, 0)
	fixed := time.Date(2026, 3, 3, 0, 5, 0, 0, time.UTC)
	jobs.now = func() time.Time { return fixed }

	s := NewScheduler()
	jobs.RegisterJobs(s)
	s.RunOnce(context.Background())

	assert.Equal(t, 1, closer.calls)
	assert.Equal(t, fixed, closer.at)
	assert.Equal(t, time.Hour, jobs.interval)
}

func TestAttendanceJobs_PropagatesError(t *testing.T) {
	boom := errors.New("db down")
	jobs := NewAttendanceJobs(&fakeCloser{err: boom}, time.Minute)

	err := jobs.CloseStaleSessions(context.Background())
	assert.ErrorIs(t, err, boom)
}
