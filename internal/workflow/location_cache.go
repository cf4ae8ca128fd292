package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"golang.org/x/sync/singleflight"
)

// LocationFetcher reads the organization's geofences from the backend.
type LocationFetcher interface {
	Locations(ctx context.Context) ([]location.LocationResponse, error)
}

// LocationCache holds the organization's geofences for the session. Workflows
// only read it; Refresh replaces the whole set.
type LocationCache struct {
	fetcher LocationFetcher
	group   singleflight.Group

	mu        sync.RWMutex
	locations []location.OrganizationLocation
	loaded    bool
}

func NewLocationCache(fetcher LocationFetcher) *LocationCache {
	return &LocationCache{fetcher: fetcher}
}

// Load fetches the geofences unless they are already cached.
func (c *LocationCache) Load(ctx context.Context) ([]location.OrganizationLocation, error) {
	if locs, err := c.Locations(); err == nil {
		return locs, nil
	}
	return c.Refresh(ctx)
}

// Refresh reloads the geofences. Concurrent callers share one request.
func (c *LocationCache) Refresh(ctx context.Context) ([]location.OrganizationLocation, error) {
	v, err, _ := c.group.Do("locations", func() (interface{}, error) {
		resp, err := c.fetcher.Locations(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load organization locations: %w", err)
		}

		locs := make([]location.OrganizationLocation, 0, len(resp))
		for _, r := range resp {
			locs = append(locs, r.ToEntity())
		}

		c.mu.Lock()
		c.locations = locs
		c.loaded = true
		c.mu.Unlock()
		return locs, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]location.OrganizationLocation)), nil
}

// Locations returns the cached geofences, or geo.ErrLocationUnavailable before
// the first successful load.
func (c *LocationCache) Locations() ([]location.OrganizationLocation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return nil, geo.ErrLocationUnavailable
	}
	return clone(c.locations), nil
}

func clone(locs []location.OrganizationLocation) []location.OrganizationLocation {
	out := make([]location.OrganizationLocation, len(locs))
	copy(out, locs)
	return out
}
