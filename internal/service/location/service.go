package location

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
)

type LocationServiceImpl struct {
	repo     location.LocationRepository
	cache    location.LocationCache
	cacheTTL time.Duration
}

// NewLocationService creates the service. cache may be nil, in which case
// every read goes to the repository.
func NewLocationService(repo location.LocationRepository, cache location.LocationCache, cacheTTL time.Duration) *LocationServiceImpl {
	return &LocationServiceImpl{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Locations returns a company's geofences, reading through the cache.
// Cache failures are logged and fall back to the repository.
func (s *LocationServiceImpl) Locations(ctx context.Context, companyID string) ([]location.OrganizationLocation, error) {
	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, companyID)
		switch {
		case err != nil:
			metrics.RecordLocationCache("error")
			slog.WarnContext(ctx, "location cache read failed", "company_id", companyID, "error", err)
		case hit:
			metrics.RecordLocationCache("hit")
			return cached, nil
		default:
			metrics.RecordLocationCache("miss")
		}
	}

	locations, err := s.repo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, companyID, locations, s.cacheTTL); err != nil {
			slog.WarnContext(ctx, "location cache write failed", "company_id", companyID, "error", err)
		}
	}

	return locations, nil
}

// List implements location.LocationService.
func (s *LocationServiceImpl) List(ctx context.Context) ([]location.LocationResponse, error) {
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	locations, err := s.Locations(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}

	resp := make([]location.LocationResponse, 0, len(locations))
	for _, l := range locations {
		resp = append(resp, location.ToResponse(l))
	}
	return resp, nil
}

// Check implements location.LocationService.
func (s *LocationServiceImpl) Check(ctx context.Context, req location.CheckLocationRequest) (location.CheckLocationResponse, error) {
	if err := req.Validate(); err != nil {
		return location.CheckLocationResponse{}, err
	}

	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return location.CheckLocationResponse{}, err
	}

	locations, err := s.Locations(ctx, actor.CompanyID)
	if err != nil {
		return location.CheckLocationResponse{}, err
	}

	match, err := location.ClassifyAny(geo.Point{Latitude: req.Latitude, Longitude: req.Longitude}, locations)
	if err != nil {
		return location.CheckLocationResponse{}, err
	}

	resp := location.CheckLocationResponse{
		WorkMode:       string(match.WorkMode),
		DistanceMeters: match.DistanceMeters,
	}
	if match.Location != nil {
		id := match.Location.ID
		resp.LocationID = &id
		resp.LocationName = match.Location.Name
		resp.RadiusMeters = match.Location.RadiusMeters
	}
	return resp, nil
}
