package location

import "context"

type LocationService interface {
	// List returns the caller's organization geofences
	List(ctx context.Context) ([]LocationResponse, error)

	// Check classifies a position against the caller's organization geofences
	Check(ctx context.Context, req CheckLocationRequest) (CheckLocationResponse, error)
}
