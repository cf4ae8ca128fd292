package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
)

// Mode selects the trade-off between speed and accuracy of a position lookup.
type Mode int

const (
	// ModeFast accepts a coarse or recently cached fix with a short timeout.
	ModeFast Mode = iota
	// ModeAccurate demands a fresh high-accuracy fix with a longer timeout.
	ModeAccurate
)

func (m Mode) String() string {
	if m == ModeAccurate {
		return "accurate"
	}
	return "fast"
}

// PositionRequest is what the platform locator is asked for.
type PositionRequest struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxAge       time.Duration
}

// Locator is the platform geolocation capability. Implementations should
// return ErrPermissionDenied, ErrPositionUnavailable or ErrTimeout where they can.
type Locator interface {
	Locate(ctx context.Context, req PositionRequest) (geo.Point, error)
}

type LocatorFunc func(ctx context.Context, req PositionRequest) (geo.Point, error)

func (f LocatorFunc) Locate(ctx context.Context, req PositionRequest) (geo.Point, error) {
	return f(ctx, req)
}

// FixedLocator always reports the same position, or Err when set.
type FixedLocator struct {
	Point geo.Point
	Err   error
}

func (l FixedLocator) Locate(ctx context.Context, _ PositionRequest) (geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return geo.Point{}, err
	}
	if l.Err != nil {
		return geo.Point{}, l.Err
	}
	return l.Point, nil
}

type PositionOptions struct {
	FastTimeout     time.Duration
	AccurateTimeout time.Duration
	MaxAge          time.Duration
}

func DefaultPositionOptions() PositionOptions {
	return PositionOptions{
		FastTimeout:     5 * time.Second,
		AccurateTimeout: 20 * time.Second,
		MaxAge:          time.Minute,
	}
}

// PositionSource obtains the user's position, escalating a failed fast lookup
// to exactly one accurate lookup.
type PositionSource struct {
	locator Locator
	opts    PositionOptions
}

func NewPositionSource(locator Locator, opts PositionOptions) *PositionSource {
	defaults := DefaultPositionOptions()
	if opts.FastTimeout <= 0 {
		opts.FastTimeout = defaults.FastTimeout
	}
	if opts.AccurateTimeout <= 0 {
		opts.AccurateTimeout = defaults.AccurateTimeout
	}
	if opts.MaxAge < 0 {
		opts.MaxAge = 0
	}
	return &PositionSource{locator: locator, opts: opts}
}

// GetPosition returns a position or a *PositionError. In ModeFast any failure is
// retried once in ModeAccurate and the accurate failure is the one reported.
func (s *PositionSource) GetPosition(ctx context.Context, mode Mode) (geo.Point, error) {
	p, err := s.attempt(ctx, mode)
	if err == nil || mode == ModeAccurate || ctx.Err() != nil {
		return p, err
	}

	slog.DebugContext(ctx, "fast position lookup failed, retrying with high accuracy", "error", err)
	return s.attempt(ctx, ModeAccurate)
}

func (s *PositionSource) request(mode Mode) PositionRequest {
	if mode == ModeAccurate {
		return PositionRequest{HighAccuracy: true, Timeout: s.opts.AccurateTimeout}
	}
	return PositionRequest{Timeout: s.opts.FastTimeout, MaxAge: s.opts.MaxAge}
}

type locateResult struct {
	point geo.Point
	err   error
}

func (s *PositionSource) attempt(ctx context.Context, mode Mode) (geo.Point, error) {
	req := s.request(mode)
	attemptCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	// The locator may ignore ctx; the deadline is enforced here either way
	done := make(chan locateResult, 1)
	go func() {
		p, err := s.locator.Locate(attemptCtx, req)
		done <- locateResult{point: p, err: err}
	}()

	var res locateResult
	select {
	case res = <-done:
	case <-attemptCtx.Done():
		res = locateResult{err: attemptCtx.Err()}
	}

	if ctx.Err() != nil {
		return geo.Point{}, ctx.Err()
	}
	if res.err != nil {
		return geo.Point{}, &PositionError{Mode: mode, Kind: classifyPositionError(res.err), Err: res.err}
	}
	if !res.point.Valid() || res.point.IsZero() {
		return geo.Point{}, &PositionError{Mode: mode, Kind: ErrPositionUnavailable}
	}
	return res.point, nil
}

func classifyPositionError(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return ErrPermissionDenied
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return ErrPositionUnavailable
	}
}
