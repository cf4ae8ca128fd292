package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
)

// Earliest zone offset in use (UTC+14). Any session dated before this day is
// stale in some zone; each one is then checked against its own policy.
const maxZoneOffset = 14 * time.Hour

// CloseStaleSessions implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CloseStaleSessions(ctx context.Context, now time.Time) (int, error) {
	bound := now.UTC().Add(maxZoneOffset).Format("2006-01-02")

	stale, err := s.AttendanceRepository.ListStaleOpenSessions(ctx, bound)
	if err != nil {
		return 0, err
	}

	closedCount := 0
	for _, rec := range stale {
		closed, err := s.closeStale(ctx, rec, now)
		if err != nil {
			slog.ErrorContext(ctx, "Cron: Failed to auto-close attendance",
				"attendance_id", rec.ID,
				"user_id", rec.UserID,
				"error", err)
			continue
		}
		if closed {
			closedCount++
		}
	}

	metrics.RecordStaleClosed(closedCount)
	return closedCount, nil
}

func (s *AttendanceServiceImpl) closeStale(ctx context.Context, rec attendance.Record, now time.Time) (bool, error) {
	locs, err := s.locations.Locations(ctx, rec.CompanyID)
	if err != nil {
		return false, fmt.Errorf("failed to load locations: %w", err)
	}

	dayPolicy, err := s.policyFor(locs, nil)
	if err != nil {
		return false, err
	}
	if rec.WorkDate >= dayPolicy.Day(now) {
		return false, nil
	}

	policy, err := s.policyFor(locs, rec.LocationID)
	if err != nil {
		return false, err
	}

	end, err := policy.EndOfDay(rec.WorkDate)
	if err != nil {
		return false, err
	}
	if end.Before(rec.CheckIn) {
		end = rec.CheckIn
	}
	end = end.UTC()

	var closed attendance.Record
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		closed, err = s.closeSession(ctx, rec, end, policy)
		return err
	})
	if err != nil {
		return false, err
	}

	actor := jwt.Actor{UserID: closed.UserID, CompanyID: closed.CompanyID}
	s.notify(ctx, actor, closed.ID, attendance.ToResponse(closed), events.TypeAutoClosed, events.TypeCheckedOut)
	return true, nil
}
