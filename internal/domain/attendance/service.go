package attendance

import (
	"context"
	"time"
)

// AttendanceService defines the authoritative attendance operations.
// The acting user and company are taken from the JWT claims in ctx.
type AttendanceService interface {
	// GetCurrent returns the open session, else the latest record of today
	GetCurrent(ctx context.Context) (AttendanceResponse, error)

	// GetToday returns today's records plus any open session from an earlier day
	GetToday(ctx context.Context) (TodayResponse, error)

	CheckIn(ctx context.Context, req CheckInRequest) (AttendanceResponse, error)
	CheckOut(ctx context.Context, req CheckOutRequest) (AttendanceResponse, error)

	StartBreak(ctx context.Context, req BreakRequest) (BreakResponse, error)
	EndBreak(ctx context.Context, req BreakRequest) (BreakResponse, error)

	CreateDailyLog(ctx context.Context, req DailyLogRequest) (DailyLogResponse, error)

	// CloseStaleSessions closes every open session left over from a previous day
	CloseStaleSessions(ctx context.Context, now time.Time) (int, error)
}
