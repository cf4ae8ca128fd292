package workflow

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
)

// BreakBackend opens and closes breaks on the caller's attendance record.
type BreakBackend interface {
	StartBreak(ctx context.Context, attendanceID string) (attendance.BreakResponse, error)
	EndBreak(ctx context.Context, attendanceID string) (attendance.BreakResponse, error)
}

// Backend is the authoritative attendance service. Rejections are reported
// with the domain errors of the attendance and location packages.
type Backend interface {
	TodayReader
	LocationFetcher
	BreakBackend

	CheckLocation(ctx context.Context, req location.CheckLocationRequest) (location.CheckLocationResponse, error)
	CheckIn(ctx context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error)
	CheckOut(ctx context.Context, req attendance.CheckOutRequest) (attendance.AttendanceResponse, error)
}
