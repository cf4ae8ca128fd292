package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "attendance:locations:"

type cachedWorkingHours struct {
	Start              string `json:"start"`
	End                string `json:"end"`
	GracePeriodMinutes int    `json:"grace_period_minutes"`
	BreakEnd           string `json:"break_end,omitempty"`
	Timezone           string `json:"timezone"`
}

type cachedLocation struct {
	ID           string             `json:"id"`
	CompanyID    string             `json:"company_id"`
	Name         string             `json:"name"`
	Coordinates  geo.Point          `json:"coordinates"`
	RadiusMeters float64            `json:"radius_meters"`
	WorkingHours cachedWorkingHours `json:"working_hours"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

type locationCache struct {
	client goredis.UniversalClient
}

func NewLocationCache(client goredis.UniversalClient) location.LocationCache {
	return &locationCache{client: client}
}

func cacheKey(companyID string) string {
	return keyPrefix + companyID
}

func encodeLocations(locations []location.OrganizationLocation) ([]byte, error) {
	cached := make([]cachedLocation, 0, len(locations))
	for _, l := range locations {
		cached = append(cached, cachedLocation{
			ID:           l.ID,
			CompanyID:    l.CompanyID,
			Name:         l.Name,
			Coordinates:  l.Coordinates,
			RadiusMeters: l.RadiusMeters,
			WorkingHours: cachedWorkingHours(l.WorkingHours),
			UpdatedAt:    l.UpdatedAt,
		})
	}
	return json.Marshal(cached)
}

func decodeLocations(data []byte) ([]location.OrganizationLocation, error) {
	var cached []cachedLocation
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	locations := make([]location.OrganizationLocation, 0, len(cached))
	for _, c := range cached {
		locations = append(locations, location.OrganizationLocation{
			ID:           c.ID,
			CompanyID:    c.CompanyID,
			Name:         c.Name,
			Coordinates:  c.Coordinates,
			RadiusMeters: c.RadiusMeters,
			WorkingHours: location.WorkingHours(c.WorkingHours),
			UpdatedAt:    c.UpdatedAt,
		})
	}
	return locations, nil
}

// Get implements location.LocationCache.
func (c *locationCache) Get(ctx context.Context, companyID string) ([]location.OrganizationLocation, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(companyID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read location cache: %w", err)
	}

	locations, err := decodeLocations(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode cached locations: %w", err)
	}
	return locations, true, nil
}

// Set implements location.LocationCache.
func (c *locationCache) Set(ctx context.Context, companyID string, locations []location.OrganizationLocation, ttl time.Duration) error {
	data, err := encodeLocations(locations)
	if err != nil {
		return fmt.Errorf("failed to encode locations: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(companyID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write location cache: %w", err)
	}
	return nil
}

// Invalidate implements location.LocationCache.
func (c *locationCache) Invalidate(ctx context.Context, companyID string) error {
	if err := c.client.Del(ctx, cacheKey(companyID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate location cache: %w", err)
	}
	return nil
}
