package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
)

// SessionCloser closes open sessions left over from earlier days.
type SessionCloser interface {
	CloseStaleSessions(ctx context.Context, now time.Time) (int, error)
}

type AttendanceJobs struct {
	closer   SessionCloser
	interval time.Duration
	now      func() time.Time
}

var _ SessionCloser = (attendance.AttendanceService)(nil)

func NewAttendanceJobs(closer SessionCloser, interval time.Duration) *AttendanceJobs {
	if interval <= 0 {
		interval = time.Hour
	}
	return &AttendanceJobs{
		closer:   closer,
		interval: interval,
		now:      time.Now,
	}
}

func (j *AttendanceJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("close_stale_sessions", j.interval, j.CloseStaleSessions)
}

// CloseStaleSessions guarantees a new work day never inherits an open session.
func (j *AttendanceJobs) CloseStaleSessions(ctx context.Context) error {
	closed, err := j.closer.CloseStaleSessions(ctx, j.now())
	if err != nil {
		return fmt.Errorf("failed to close stale sessions: %w", err)
	}
	if closed > 0 {
		slog.Info("Cron: Auto-closed stale attendances", "count", closed)
	}
	return nil
}
