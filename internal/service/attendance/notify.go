package attendance

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
)

// notify fans a committed change out to the event bus and the caller's open streams.
// Failures are logged; the mutation has already succeeded.
func (s *AttendanceServiceImpl) notify(ctx context.Context, actor jwt.Actor, attendanceID string, payload interface{}, types ...string) {
	evs := make([]events.Event, 0, len(types))
	for _, t := range types {
		evs = append(evs, events.New(t, actor.CompanyID, actor.UserID, attendanceID, payload))
	}
	s.publish(ctx, evs...)

	if s.hub != nil {
		key := sse.Key(actor.CompanyID, actor.UserID)
		for _, t := range types {
			s.hub.Publish(key, sse.NewEvent(t, payload))
		}
	}
}

func (s *AttendanceServiceImpl) publish(ctx context.Context, evs ...events.Event) {
	if len(evs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, evs...); err != nil {
		for _, ev := range evs {
			metrics.RecordPublishError(ev.Type)
		}
		slog.WarnContext(ctx, "failed to publish attendance events",
			"event_type", evs[0].Type, "count", len(evs), "error", err)
	}
}

var rejectionCodes = []struct {
	err  error
	code string
}{
	{attendance.ErrDailyLimitReached, "daily_limit_reached"},
	{attendance.ErrAlreadyCheckedIn, "already_checked_in"},
	{attendance.ErrNoActiveSession, "no_active_session"},
	{attendance.ErrBreakAlreadyOpen, "break_already_open"},
	{attendance.ErrNoOpenBreak, "no_open_break"},
	{attendance.ErrAttendanceNotFound, "attendance_not_found"},
	{attendance.ErrUnauthorized, "unauthorized"},
}

func (s *AttendanceServiceImpl) recordRejection(operation string, err error) {
	for _, rc := range rejectionCodes {
		if errors.Is(err, rc.err) {
			metrics.RecordRejection(operation, rc.code)
			return
		}
	}
}
