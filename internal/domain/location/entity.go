package location

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
)

// OrganizationLocation is a geofence an employee may check in at.
// It is read-only here and maintained by the organization admin tooling.
type OrganizationLocation struct {
	ID           string
	CompanyID    string
	Name         string
	Coordinates  geo.Point
	RadiusMeters float64
	WorkingHours WorkingHours
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WorkingHours are wall-clock values ("HH:MM") interpreted in Timezone.
type WorkingHours struct {
	Start              string
	End                string
	GracePeriodMinutes int
	BreakEnd           string
	Timezone           string
}
