package location

import (
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type WorkingHoursResponse struct {
	Start              string `json:"start"`
	End                string `json:"end"`
	GracePeriodMinutes int    `json:"grace_period_minutes"`
	BreakEnd           string `json:"break_end,omitempty"`
	Timezone           string `json:"timezone"`
}

type LocationResponse struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Latitude     float64              `json:"latitude"`
	Longitude    float64              `json:"longitude"`
	RadiusMeters float64              `json:"radius_meters"`
	WorkingHours WorkingHoursResponse `json:"working_hours"`
}

type CheckLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (r *CheckLocationRequest) Validate() error {
	var errs validator.ValidationErrors

	if !validator.IsValidLatitude(r.Latitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if !validator.IsValidLongitude(r.Longitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type CheckLocationResponse struct {
	WorkMode       string  `json:"work_mode"`
	LocationID     *string `json:"location_id,omitempty"`
	LocationName   string  `json:"location_name,omitempty"`
	DistanceMeters float64 `json:"distance_meters"`
	RadiusMeters   float64 `json:"radius_meters"`
}

func ToResponse(l OrganizationLocation) LocationResponse {
	return LocationResponse{
		ID:           l.ID,
		Name:         l.Name,
		Latitude:     l.Coordinates.Latitude,
		Longitude:    l.Coordinates.Longitude,
		RadiusMeters: l.RadiusMeters,
		WorkingHours: WorkingHoursResponse{
			Start:              l.WorkingHours.Start,
			End:                l.WorkingHours.End,
			GracePeriodMinutes: l.WorkingHours.GracePeriodMinutes,
			BreakEnd:           l.WorkingHours.BreakEnd,
			Timezone:           l.WorkingHours.Timezone,
		},
	}
}

func (r LocationResponse) ToEntity() OrganizationLocation {
	return OrganizationLocation{
		ID:           r.ID,
		Name:         r.Name,
		Coordinates:  geo.Point{Latitude: r.Latitude, Longitude: r.Longitude},
		RadiusMeters: r.RadiusMeters,
		WorkingHours: WorkingHours{
			Start:              r.WorkingHours.Start,
			End:                r.WorkingHours.End,
			GracePeriodMinutes: r.WorkingHours.GracePeriodMinutes,
			BreakEnd:           r.WorkingHours.BreakEnd,
			Timezone:           r.WorkingHours.Timezone,
		},
	}
}
