package postgresql

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

// Scheme is one forward-only schema step.
type Scheme struct {
	Index       int
	Description string
	Query       string
}

var scheme = []Scheme{
	{
		Index:       1,
		Description: "Create table: organization_locations",
		Query: `
		CREATE TABLE IF NOT EXISTS organization_locations (
			id                   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			company_id           UUID NOT NULL,
			name                 TEXT NOT NULL,
			latitude             DOUBLE PRECISION NOT NULL CHECK (latitude BETWEEN -90 AND 90),
			longitude            DOUBLE PRECISION NOT NULL CHECK (longitude BETWEEN -180 AND 180),
			radius_meters        DOUBLE PRECISION NOT NULL CHECK (radius_meters > 0),
			work_start           TIME NOT NULL DEFAULT '09:00',
			work_end             TIME NOT NULL DEFAULT '17:00',
			grace_period_minutes INT NOT NULL DEFAULT 0 CHECK (grace_period_minutes >= 0),
			break_end            TIME,
			timezone             TEXT NOT NULL DEFAULT 'UTC',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS organization_locations_company_idx ON organization_locations (company_id);`,
	},
	{
		Index:       2,
		Description: "Create table: attendances",
		Query: `
		CREATE TABLE IF NOT EXISTS attendances (
			id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id             UUID NOT NULL,
			company_id          UUID NOT NULL,
			work_date           DATE NOT NULL,
			location_id         UUID REFERENCES organization_locations (id) ON DELETE SET NULL,
			check_in            TIMESTAMPTZ NOT NULL,
			check_out           TIMESTAMPTZ,
			work_mode           TEXT NOT NULL CHECK (work_mode IN ('on_site', 'remote')),
			status              TEXT NOT NULL CHECK (status IN ('present', 'late', 'absent')),
			check_in_latitude   DOUBLE PRECISION NOT NULL,
			check_in_longitude  DOUBLE PRECISION NOT NULL,
			check_out_latitude  DOUBLE PRECISION,
			check_out_longitude DOUBLE PRECISION,
			working_minutes     INT,
			break_minutes       INT NOT NULL DEFAULT 0,
			partial_day         BOOLEAN NOT NULL DEFAULT FALSE,
			notes               TEXT,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT attendances_user_work_date_key UNIQUE (user_id, company_id, work_date),
			CONSTRAINT attendances_check_out_after_check_in CHECK (check_out IS NULL OR check_out >= check_in)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS attendances_one_open_session_key
			ON attendances (user_id, company_id) WHERE check_out IS NULL;`,
	},
	{
		Index:       3,
		Description: "Create table: attendance_breaks",
		Query: `
		CREATE TABLE IF NOT EXISTS attendance_breaks (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			attendance_id UUID NOT NULL REFERENCES attendances (id) ON DELETE CASCADE,
			start_time    TIMESTAMPTZ NOT NULL,
			end_time      TIMESTAMPTZ,
			status        TEXT NOT NULL DEFAULT 'on_time' CHECK (status IN ('on_time', 'late')),
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS attendance_breaks_one_open_key
			ON attendance_breaks (attendance_id) WHERE end_time IS NULL;`,
	},
	{
		Index:       4,
		Description: "Create table: daily_logs",
		Query: `
		CREATE TABLE IF NOT EXISTS daily_logs (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id       UUID NOT NULL,
			company_id    UUID NOT NULL,
			attendance_id UUID NOT NULL REFERENCES attendances (id) ON DELETE CASCADE,
			kind          TEXT NOT NULL CHECK (kind IN ('check_in', 'check_out')),
			task_id       TEXT,
			note          TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	},
}

// Migrate applies every scheme step newer than the recorded version, each in
// its own transaction.
func Migrate(ctx context.Context, db *database.DB) error {
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INT NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var version int
	err := db.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, s := range scheme {
		if s.Index <= version {
			continue
		}
		err := WithTransaction(ctx, db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, s.Query); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, s.Index)
			return err
		})
		if err != nil {
			return fmt.Errorf("migrate version %d (%s): %w", s.Index, s.Description, err)
		}
		slog.Info("Migration applied", "version", s.Index, "description", s.Description)
	}

	return nil
}
