package location

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var office = geo.Point{Latitude: -6.2088, Longitude: 106.8456}

type fakeLocationRepo struct {
	locations map[string][]location.OrganizationLocation
	calls     int
}

func (f *fakeLocationRepo) ListByCompany(_ context.Context, companyID string) ([]location.OrganizationLocation, error) {
	f.calls++
	return f.locations[companyID], nil
}

func (f *fakeLocationRepo) GetByID(_ context.Context, id string, companyID string) (location.OrganizationLocation, error) {
	for _, l := range f.locations[companyID] {
		if l.ID == id {
			return l, nil
		}
	}
	return location.OrganizationLocation{}, location.ErrLocationNotFound
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]location.OrganizationLocation
	failGet bool
}

func (m *memoryCache) Get(_ context.Context, companyID string) ([]location.OrganizationLocation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errors.New("connection refused")
	}
	locs, ok := m.entries[companyID]
	return locs, ok, nil
}

func (m *memoryCache) Set(_ context.Context, companyID string, locs []location.OrganizationLocation, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[companyID] = locs
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, companyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, companyID)
	return nil
}

func authContext(t *testing.T, userID, companyID string) context.Context {
	t.Helper()
	svc, err := jwt.NewJWTService("test-secret-key-for-jwt", "1h")
	require.NoError(t, err)
	token, _, err := svc.GenerateAccessToken(userID, companyID)
	require.NoError(t, err)
	verified, err := jwtauth.VerifyToken(svc.JWTAuth(), token)
	require.NoError(t, err)
	return jwtauth.NewContext(context.Background(), verified, nil)
}

func newRepo() *fakeLocationRepo {
	return &fakeLocationRepo{locations: map[string][]location.OrganizationLocation{
		"c1": {{ID: "hq", CompanyID: "c1", Name: "HQ", Coordinates: office, RadiusMeters: 150}},
	}}
}

func TestLocations_CacheAside(t *testing.T) {
	repo := newRepo()
	cache := &memoryCache{entries: map[string][]location.OrganizationLocation{}}
	svc := NewLocationService(repo, cache, time.Minute)

	first, err := svc.Locations(context.Background(), "c1")
	require.NoError(t, err)
	second, err := svc.Locations(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.calls)
}

func TestLocations_CacheFailureFallsBack(t *testing.T) {
	repo := newRepo()
	svc := NewLocationService(repo, &memoryCache{entries: map[string][]location.OrganizationLocation{}, failGet: true}, time.Minute)

	locs, err := svc.Locations(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, locs, 1)

	_, err = svc.Locations(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestList(t *testing.T) {
	svc := NewLocationService(newRepo(), nil, 0)

	resp, err := svc.List(authContext(t, "u1", "c1"))
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Equal(t, "hq", resp[0].ID)
	assert.Equal(t, 150.0, resp[0].RadiusMeters)

	_, err = svc.List(context.Background())
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	svc := NewLocationService(newRepo(), nil, 0)
	ctx := authContext(t, "u1", "c1")

	near := geo.Offset(office, 50, 10)
	resp, err := svc.Check(ctx, location.CheckLocationRequest{Latitude: near.Latitude, Longitude: near.Longitude})
	require.NoError(t, err)
	assert.Equal(t, "on_site", resp.WorkMode)
	require.NotNil(t, resp.LocationID)
	assert.Equal(t, "hq", *resp.LocationID)
	assert.InDelta(t, 50, resp.DistanceMeters, 0.5)

	far := geo.Offset(office, 5000, 200)
	resp, err = svc.Check(ctx, location.CheckLocationRequest{Latitude: far.Latitude, Longitude: far.Longitude})
	require.NoError(t, err)
	assert.Equal(t, "remote", resp.WorkMode)

	_, err = svc.Check(ctx, location.CheckLocationRequest{Latitude: 95, Longitude: 0})
	assert.Error(t, err)

	_, err = svc.Check(authContext(t, "u1", "c-empty"), location.CheckLocationRequest{Latitude: near.Latitude, Longitude: near.Longitude})
	assert.ErrorIs(t, err, location.ErrNoLocationsConfigured)
}
