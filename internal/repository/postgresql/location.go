package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const locationColumns = `
	id, company_id, name, latitude, longitude, radius_meters,
	to_char(work_start, 'HH24:MI'), to_char(work_end, 'HH24:MI'), grace_period_minutes,
	COALESCE(to_char(break_end, 'HH24:MI'), ''), timezone,
	created_at, updated_at`

type locationRepository struct {
	db *database.DB
}

func NewLocationRepository(db *database.DB) location.LocationRepository {
	return &locationRepository{db: db}
}

func scanLocation(row pgx.Row) (location.OrganizationLocation, error) {
	var l location.OrganizationLocation
	err := row.Scan(
		&l.ID, &l.CompanyID, &l.Name,
		&l.Coordinates.Latitude, &l.Coordinates.Longitude, &l.RadiusMeters,
		&l.WorkingHours.Start, &l.WorkingHours.End, &l.WorkingHours.GracePeriodMinutes,
		&l.WorkingHours.BreakEnd, &l.WorkingHours.Timezone,
		&l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// ListByCompany implements location.LocationRepository.
func (r *locationRepository) ListByCompany(ctx context.Context, companyID string) ([]location.OrganizationLocation, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT `+locationColumns+` FROM organization_locations WHERE company_id = $1 ORDER BY name ASC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []location.OrganizationLocation
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}

	return locations, nil
}

// GetByID implements location.LocationRepository.
func (r *locationRepository) GetByID(ctx context.Context, id string, companyID string) (location.OrganizationLocation, error) {
	q := GetQuerier(ctx, r.db)

	l, err := scanLocation(q.QueryRow(ctx, `SELECT `+locationColumns+` FROM organization_locations WHERE id = $1 AND company_id = $2`, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return location.OrganizationLocation{}, location.ErrLocationNotFound
		}
		return location.OrganizationLocation{}, fmt.Errorf("failed to get location: %w", err)
	}
	return l, nil
}
