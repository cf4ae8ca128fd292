package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPositionOptions = PositionOptions{
	FastTimeout:     50 * time.Millisecond,
	AccurateTimeout: 100 * time.Millisecond,
	MaxAge:          time.Minute,
}

func TestGetPosition_FastSuccess(t *testing.T) {
	locator := locatorReturning(locateResult{point: office})
	src := NewPositionSource(locator, testPositionOptions)

	p, err := src.GetPosition(context.Background(), ModeFast)
	require.NoError(t, err)
	assert.Equal(t, office, p)

	calls := locator.calls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].HighAccuracy)
	assert.Equal(t, time.Minute, calls[0].MaxAge)
	assert.Equal(t, 50*time.Millisecond, calls[0].Timeout)
}

func TestGetPosition_EscalatesOnce(t *testing.T) {
	locator := locatorReturning(
		locateResult{err: ErrTimeout},
		locateResult{point: office},
	)
	src := NewPositionSource(locator, testPositionOptions)

	p, err := src.GetPosition(context.Background(), ModeFast)
	require.NoError(t, err)
	assert.Equal(t, office, p)

	calls := locator.calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[1].HighAccuracy)
	assert.Zero(t, calls[1].MaxAge)
	assert.Equal(t, 100*time.Millisecond, calls[1].Timeout)
}

func TestGetPosition_ReportsAccurateFailure(t *testing.T) {
	locator := locatorReturning(
		locateResult{err: ErrTimeout},
		locateResult{err: errDenied},
	)
	src := NewPositionSource(locator, testPositionOptions)

	_, err := src.GetPosition(context.Background(), ModeFast)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.NotErrorIs(t, err, ErrTimeout)

	var perr *PositionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ModeAccurate, perr.Mode)
	assert.Len(t, locator.calls(), 2)
}

func TestGetPosition_AccurateModeDoesNotRetry(t *testing.T) {
	locator := locatorReturning(locateResult{err: ErrPositionUnavailable})
	src := NewPositionSource(locator, testPositionOptions)

	_, err := src.GetPosition(context.Background(), ModeAccurate)
	assert.ErrorIs(t, err, ErrPositionUnavailable)
	assert.Len(t, locator.calls(), 1)
}

func TestGetPosition_HangingLocatorTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	locator := LocatorFunc(func(_ context.Context, _ PositionRequest) (geo.Point, error) {
		<-release
		return office, nil
	})
	src := NewPositionSource(locator, testPositionOptions)

	start := time.Now()
	_, err := src.GetPosition(context.Background(), ModeFast)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGetPosition_CanceledContextDoesNotEscalate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	locator := LocatorFunc(func(ctx context.Context, _ PositionRequest) (geo.Point, error) {
		calls++
		cancel()
		<-ctx.Done()
		return geo.Point{}, ctx.Err()
	})
	src := NewPositionSource(locator, testPositionOptions)

	_, err := src.GetPosition(ctx, ModeFast)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestGetPosition_ZeroPointIsUnavailable(t *testing.T) {
	locator := locatorReturning(locateResult{point: geo.Point{}})
	src := NewPositionSource(locator, testPositionOptions)

	_, err := src.GetPosition(context.Background(), ModeFast)
	assert.ErrorIs(t, err, ErrPositionUnavailable)
	assert.Len(t, locator.calls(), 2)
}

func TestNewPositionSource_Defaults(t *testing.T) {
	src := NewPositionSource(FixedLocator{Point: office}, PositionOptions{})
	assert.Equal(t, DefaultPositionOptions().FastTimeout, src.opts.FastTimeout)
	assert.Equal(t, DefaultPositionOptions().AccurateTimeout, src.opts.AccurateTimeout)
}

func TestFixedLocator(t *testing.T) {
	p, err := FixedLocator{Point: office}.Locate(context.Background(), PositionRequest{})
	require.NoError(t, err)
	assert.Equal(t, office, p)

	_, err = FixedLocator{Err: errDenied}.Locate(context.Background(), PositionRequest{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
