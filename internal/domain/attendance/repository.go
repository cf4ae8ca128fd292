package attendance

import (
	"context"
	"time"
)

// AttendanceRepository defines data access methods for attendance records.
// All reads are scoped by companyID to prevent cross-company access.
type AttendanceRepository interface {
	// Create inserts a new open session. A second record for the same user and
	// work date violates the (user_id, work_date) unique index.
	Create(ctx context.Context, record Record) (Record, error)

	// GetByID retrieves a record with company isolation
	GetByID(ctx context.Context, id string, companyID string) (Record, error)

	// GetOpenSession returns the user's record with no checkout, or nil
	GetOpenSession(ctx context.Context, userID string, companyID string) (*Record, error)

	// ListByWorkDate returns the user's records for one work date, oldest first
	ListByWorkDate(ctx context.Context, userID string, companyID string, workDate string) ([]Record, error)

	// CountByWorkDate counts the user's records for one work date
	CountByWorkDate(ctx context.Context, userID string, companyID string, workDate string) (int, error)

	// Close writes the checkout fields. It fails with ErrNoActiveSession when
	// the record was already closed.
	Close(ctx context.Context, record Record) (Record, error)

	// ListStaleOpenSessions returns open sessions whose work date is before the given day
	ListStaleOpenSessions(ctx context.Context, beforeWorkDate string) ([]Record, error)
}

type BreakRepository interface {
	// Start inserts an open break. The partial unique index rejects a second open break.
	Start(ctx context.Context, b BreakRecord) (BreakRecord, error)

	// GetOpen returns the open break of an attendance record, or nil
	GetOpen(ctx context.Context, attendanceID string) (*BreakRecord, error)

	// End stamps the end time and final status of an open break
	End(ctx context.Context, breakID string, end time.Time, status BreakStatus) (BreakRecord, error)

	// ListByAttendance returns breaks of the given records keyed by attendance id
	ListByAttendance(ctx context.Context, attendanceIDs ...string) (map[string][]BreakRecord, error)
}

type DailyLogRepository interface {
	Create(ctx context.Context, log DailyLog) (DailyLog, error)
}
