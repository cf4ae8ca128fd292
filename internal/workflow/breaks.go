package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
)

// BreakTracker runs the break state machine of the store's bound record.
type BreakTracker struct {
	store   *Store
	backend BreakBackend
}

func NewBreakTracker(store *Store, backend BreakBackend) *BreakTracker {
	return &BreakTracker{store: store, backend: backend}
}

func (t *BreakTracker) State() BreakState {
	return t.store.Snapshot().BreakState
}

// Start opens a break on the bound record. The break is on_time until it ends.
func (t *BreakTracker) Start(ctx context.Context) (attendance.BreakResponse, error) {
	snap := t.store.Snapshot()
	if snap.State != StateCheckedIn || snap.RecordID == "" {
		return attendance.BreakResponse{}, attendance.ErrNoActiveSession
	}
	if snap.BreakState == BreakOn {
		return attendance.BreakResponse{}, attendance.ErrBreakAlreadyOpen
	}

	b, err := t.backend.StartBreak(ctx, snap.RecordID)
	if err != nil {
		return attendance.BreakResponse{}, t.resync(ctx, err)
	}
	t.store.applyBreak(&b)
	t.store.settle(ctx)
	return b, nil
}

// End closes the open break. The backend decides on_time or late.
func (t *BreakTracker) End(ctx context.Context) (attendance.BreakResponse, error) {
	snap := t.store.Snapshot()
	if snap.State != StateCheckedIn || snap.RecordID == "" {
		return attendance.BreakResponse{}, attendance.ErrNoActiveSession
	}
	if snap.BreakState != BreakOn {
		return attendance.BreakResponse{}, attendance.ErrNoOpenBreak
	}

	b, err := t.backend.EndBreak(ctx, snap.RecordID)
	if err != nil {
		return attendance.BreakResponse{}, t.resync(ctx, err)
	}
	t.store.applyBreak(&b)
	t.store.settle(ctx)
	return b, nil
}

// closingBreak is the open break of snap as it would read when closed at the
// given instant. The store is not touched; the backend closes the break
// authoritatively as part of checkout.
func closingBreak(snap Snapshot, at time.Time, policy attendance.Policy) *attendance.BreakResponse {
	if snap.BreakState != BreakOn || snap.OpenBreak == nil {
		return nil
	}
	closed := *snap.OpenBreak
	if at.Before(closed.StartTime) {
		at = closed.StartTime
	}
	closed.EndTime = &at
	closed.Status = string(policy.ClassifyBreakEnd(at))
	return &closed
}

// resync reconciles after a business-rule rejection, which means the local
// view was stale. The rejection is returned either way.
func (t *BreakTracker) resync(ctx context.Context, err error) error {
	if isBusinessRejection(err) {
		if _, rerr := t.store.Reconcile(ctx); rerr != nil {
			slog.WarnContext(ctx, "reconciliation after rejected break change failed", "error", rerr)
		}
	}
	return err
}

func isBusinessRejection(err error) bool {
	for _, target := range []error{
		attendance.ErrDailyLimitReached,
		attendance.ErrAlreadyCheckedIn,
		attendance.ErrNoActiveSession,
		attendance.ErrBreakAlreadyOpen,
		attendance.ErrNoOpenBreak,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
