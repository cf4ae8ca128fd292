package workflow

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
)

// DailyLimitGuard allows a check-in only when the backend holds no record for
// the user today. It never trusts the cached snapshot.
type DailyLimitGuard struct {
	store *Store
	limit int
}

func NewDailyLimitGuard(store *Store) *DailyLimitGuard {
	return &DailyLimitGuard{store: store, limit: DailyLimit}
}

// Check reconciles with the backend and reports whether a check-in may proceed.
func (g *DailyLimitGuard) Check(ctx context.Context) error {
	snap, err := g.store.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify daily limit: %w", err)
	}
	if snap.State == StateCheckedIn {
		return attendance.ErrAlreadyCheckedIn
	}
	if snap.TodayCount >= g.limit {
		return attendance.ErrDailyLimitReached
	}
	return nil
}

// Armed reports whether the last known state blocks further check-ins today.
func (g *DailyLimitGuard) Armed() bool {
	return g.store.Snapshot().LimitArmed
}
