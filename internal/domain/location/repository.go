package location

import (
	"context"
	"time"
)

type LocationRepository interface {
	// ListByCompany returns every geofence of a company, ordered by name
	ListByCompany(ctx context.Context, companyID string) ([]OrganizationLocation, error)
	GetByID(ctx context.Context, id string, companyID string) (OrganizationLocation, error)
}

// LocationCache is a cache-aside store for ListByCompany results.
// A miss returns (nil, false, nil).
type LocationCache interface {
	Get(ctx context.Context, companyID string) ([]OrganizationLocation, bool, error)
	Set(ctx context.Context, companyID string, locations []OrganizationLocation, ttl time.Duration) error
	Invalidate(ctx context.Context, companyID string) error
}
