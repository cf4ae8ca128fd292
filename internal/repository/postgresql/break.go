package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const breakColumns = `id, attendance_id, start_time, end_time, status, created_at, updated_at`

type breakRepository struct {
	db *database.DB
}

func NewBreakRepository(db *database.DB) attendance.BreakRepository {
	return &breakRepository{db: db}
}

func scanBreak(row pgx.Row) (attendance.BreakRecord, error) {
	var (
		b      attendance.BreakRecord
		status string
	)
	if err := row.Scan(&b.ID, &b.AttendanceID, &b.StartTime, &b.EndTime, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return attendance.BreakRecord{}, err
	}
	b.Status = attendance.BreakStatus(status)
	return b, nil
}

// Start implements attendance.BreakRepository.
func (r *breakRepository) Start(ctx context.Context, b attendance.BreakRecord) (attendance.BreakRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO attendance_breaks (attendance_id, start_time, status)
		VALUES ($1, $2, $3)
		RETURNING ` + breakColumns

	created, err := scanBreak(q.QueryRow(ctx, query, b.AttendanceID, b.StartTime, string(b.Status)))
	if err != nil {
		if database.IsUniqueViolation(err, "attendance_breaks_one_open_key") {
			return attendance.BreakRecord{}, attendance.ErrBreakAlreadyOpen
		}
		return attendance.BreakRecord{}, fmt.Errorf("failed to start break: %w", err)
	}
	return created, nil
}

// GetOpen implements attendance.BreakRepository.
func (r *breakRepository) GetOpen(ctx context.Context, attendanceID string) (*attendance.BreakRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + breakColumns + ` FROM attendance_breaks WHERE attendance_id = $1 AND end_time IS NULL`

	b, err := scanBreak(q.QueryRow(ctx, query, attendanceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open break: %w", err)
	}
	return &b, nil
}

// End implements attendance.BreakRepository.
func (r *breakRepository) End(ctx context.Context, breakID string, end time.Time, status attendance.BreakStatus) (attendance.BreakRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE attendance_breaks
		SET end_time = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND end_time IS NULL
		RETURNING ` + breakColumns

	b, err := scanBreak(q.QueryRow(ctx, query, end, string(status), breakID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.BreakRecord{}, attendance.ErrNoOpenBreak
		}
		return attendance.BreakRecord{}, fmt.Errorf("failed to end break: %w", err)
	}
	return b, nil
}

// ListByAttendance implements attendance.BreakRepository.
func (r *breakRepository) ListByAttendance(ctx context.Context, attendanceIDs ...string) (map[string][]attendance.BreakRecord, error) {
	result := make(map[string][]attendance.BreakRecord, len(attendanceIDs))
	if len(attendanceIDs) == 0 {
		return result, nil
	}

	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + breakColumns + `
		FROM attendance_breaks
		WHERE attendance_id = ANY($1::uuid[])
		ORDER BY start_time ASC`

	rows, err := q.Query(ctx, query, attendanceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list breaks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan break: %w", err)
		}
		result[b.AttendanceID] = append(result[b.AttendanceID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate breaks: %w", err)
	}

	return result, nil
}
