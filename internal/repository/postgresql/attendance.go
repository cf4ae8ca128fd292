package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/jackc/pgx/v5"
)

const attendanceColumns = `
	id, user_id, company_id, work_date::text, location_id,
	check_in, check_out, work_mode, status,
	check_in_latitude, check_in_longitude, check_out_latitude, check_out_longitude,
	working_minutes, break_minutes, partial_day, notes,
	created_at, updated_at`

type attendanceRepository struct {
	db *database.DB
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

func scanAttendance(row pgx.Row) (attendance.Record, error) {
	var (
		rec            attendance.Record
		workMode       string
		status         string
		outLat, outLon *float64
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.CompanyID, &rec.WorkDate, &rec.LocationID,
		&rec.CheckIn, &rec.CheckOut, &workMode, &status,
		&rec.CheckInCoordinates.Latitude, &rec.CheckInCoordinates.Longitude, &outLat, &outLon,
		&rec.WorkingMinutes, &rec.BreakMinutes, &rec.PartialDay, &rec.Notes,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return attendance.Record{}, err
	}
	rec.WorkMode = attendance.WorkMode(workMode)
	rec.Status = attendance.Status(status)
	if outLat != nil && outLon != nil {
		rec.CheckOutCoordinates = &geo.Point{Latitude: *outLat, Longitude: *outLon}
	}
	return rec, nil
}

func collectAttendances(rows pgx.Rows) ([]attendance.Record, error) {
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Create implements attendance.AttendanceRepository.
func (a *attendanceRepository) Create(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendances (
			user_id, company_id, work_date, location_id, check_in, work_mode, status,
			check_in_latitude, check_in_longitude, notes
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		rec.UserID,
		rec.CompanyID,
		rec.WorkDate,
		rec.LocationID,
		rec.CheckIn,
		string(rec.WorkMode),
		string(rec.Status),
		rec.CheckInCoordinates.Latitude,
		rec.CheckInCoordinates.Longitude,
		rec.Notes,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "attendances_user_work_date_key") {
			return attendance.Record{}, attendance.ErrDailyLimitReached
		}
		if database.IsUniqueViolation(err, "attendances_one_open_session_key") {
			return attendance.Record{}, attendance.ErrAlreadyCheckedIn
		}
		return attendance.Record{}, fmt.Errorf("failed to create attendance: %w", err)
	}

	return rec, nil
}

// GetByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByID(ctx context.Context, id string, companyID string) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + ` FROM attendances WHERE id = $1 AND company_id = $2`

	rec, err := scanAttendance(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrAttendanceNotFound
		}
		return attendance.Record{}, fmt.Errorf("failed to get attendance by ID: %w", err)
	}
	return rec, nil
}

// GetOpenSession implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetOpenSession(ctx context.Context, userID string, companyID string) (*attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + `
		FROM attendances
		WHERE user_id = $1 AND company_id = $2 AND check_out IS NULL
		ORDER BY check_in DESC
		LIMIT 1`

	rec, err := scanAttendance(q.QueryRow(ctx, query, userID, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}
	return &rec, nil
}

// ListByWorkDate implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListByWorkDate(ctx context.Context, userID string, companyID string, workDate string) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + `
		FROM attendances
		WHERE user_id = $1 AND company_id = $2 AND work_date = $3
		ORDER BY check_in ASC`

	rows, err := q.Query(ctx, query, userID, companyID, workDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendances: %w", err)
	}
	records, err := collectAttendances(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan attendances: %w", err)
	}
	return records, nil
}

// CountByWorkDate implements attendance.AttendanceRepository.
func (a *attendanceRepository) CountByWorkDate(ctx context.Context, userID string, companyID string, workDate string) (int, error) {
	q := GetQuerier(ctx, a.db)

	var count int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM attendances WHERE user_id = $1 AND company_id = $2 AND work_date = $3`,
		userID, companyID, workDate,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count attendances: %w", err)
	}
	return count, nil
}

// Close implements attendance.AttendanceRepository.
func (a *attendanceRepository) Close(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	var outLat, outLon *float64
	if rec.CheckOutCoordinates != nil {
		outLat, outLon = &rec.CheckOutCoordinates.Latitude, &rec.CheckOutCoordinates.Longitude
	}

	// check_out IS NULL makes a concurrent second checkout a no-op
	query := `
		UPDATE attendances SET
			check_out = $1,
			check_out_latitude = $2,
			check_out_longitude = $3,
			working_minutes = $4,
			break_minutes = $5,
			partial_day = $6,
			notes = COALESCE($7, notes),
			updated_at = NOW()
		WHERE id = $8 AND company_id = $9 AND check_out IS NULL
		RETURNING ` + attendanceColumns

	closed, err := scanAttendance(q.QueryRow(ctx, query,
		rec.CheckOut,
		outLat,
		outLon,
		rec.WorkingMinutes,
		rec.BreakMinutes,
		rec.PartialDay,
		rec.Notes,
		rec.ID,
		rec.CompanyID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrNoActiveSession
		}
		return attendance.Record{}, fmt.Errorf("failed to close attendance: %w", err)
	}
	return closed, nil
}

// ListStaleOpenSessions implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListStaleOpenSessions(ctx context.Context, beforeWorkDate string) ([]attendance.Record, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + `
		FROM attendances
		WHERE check_out IS NULL AND work_date < $1
		ORDER BY work_date ASC, check_in ASC`

	rows, err := q.Query(ctx, query, beforeWorkDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale sessions: %w", err)
	}
	records, err := collectAttendances(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan stale sessions: %w", err)
	}
	return records, nil
}
