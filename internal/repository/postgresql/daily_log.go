package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
)

type dailyLogRepository struct {
	db *database.DB
}

func NewDailyLogRepository(db *database.DB) attendance.DailyLogRepository {
	return &dailyLogRepository{db: db}
}

// Create implements attendance.DailyLogRepository.
func (r *dailyLogRepository) Create(ctx context.Context, log attendance.DailyLog) (attendance.DailyLog, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO daily_logs (user_id, company_id, attendance_id, kind, task_id, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := q.QueryRow(ctx, query,
		log.UserID,
		log.CompanyID,
		log.AttendanceID,
		string(log.Kind),
		log.TaskID,
		log.Note,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return attendance.DailyLog{}, fmt.Errorf("failed to create daily log: %w", err)
	}

	return log, nil
}
