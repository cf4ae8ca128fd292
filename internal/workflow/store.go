package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
)

// TodayReader returns the backend's records for the caller's current day.
type TodayReader interface {
	Today(ctx context.Context) (attendance.TodayResponse, error)
}

// Store is the client's shadow of the authoritative attendance state. Every
// change goes through apply; Reconcile replaces it with the backend's view.
type Store struct {
	backend TodayReader
	subs    subscribers

	mu   sync.RWMutex
	snap Snapshot
}

func NewStore(backend TodayReader) *Store {
	return &Store{
		backend: backend,
		snap:    Snapshot{State: StateNotCheckedIn, BreakState: BreakOff},
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe returns a channel of state changes and a function to stop them.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.subs.add()
}

// Reconcile rederives the snapshot from today's records on the backend,
// discarding any provisional state.
func (s *Store) Reconcile(ctx context.Context) (Snapshot, error) {
	today, err := s.backend.Today(ctx)
	if err != nil {
		return s.Snapshot(), fmt.Errorf("failed to reconcile attendance state: %w", err)
	}
	snap := Derive(today)
	s.apply(snap)
	return snap, nil
}

// settle reconciles after a change the backend accepted. On failure the
// provisional snapshot stays until the next reconcile.
func (s *Store) settle(ctx context.Context) Snapshot {
	snap, err := s.Reconcile(ctx)
	if err != nil {
		slog.WarnContext(ctx, "reconciliation after accepted change failed", "error", err)
	}
	return snap
}

func (s *Store) apply(next Snapshot) {
	s.mu.Lock()
	changed := !reflect.DeepEqual(s.snap, next)
	s.snap = next
	s.mu.Unlock()

	if changed {
		s.subs.broadcast(eventFrom(next))
	}
}

// applyCheckIn records a check-in the backend has just accepted.
func (s *Store) applyCheckIn(rec attendance.AttendanceResponse) Snapshot {
	next := s.Snapshot()
	bindRecord(&next, rec)
	next.State = StateCheckedIn
	if rec.WorkDate == next.Date || next.Date == "" {
		next.TodayCount++
	}
	next.LimitArmed = next.TodayCount >= DailyLimit
	next.Provisional = true
	s.apply(next)
	return next
}

// applyCheckOut records a checkout the backend has just accepted. The limit
// stays armed for the rest of the day.
func (s *Store) applyCheckOut(rec attendance.AttendanceResponse) Snapshot {
	next := s.Snapshot()
	bindRecord(&next, rec)
	next.State = StateCheckedOut
	next.LimitArmed = true
	next.Provisional = true
	s.apply(next)
	return next
}

// applyBreak mirrors a break change onto the bound record.
func (s *Store) applyBreak(b *attendance.BreakResponse) Snapshot {
	next := s.Snapshot()
	if b != nil && b.EndTime == nil {
		next.BreakState = BreakOn
		next.OpenBreak = b
	} else {
		next.BreakState = BreakOff
		next.OpenBreak = nil
	}
	next.Provisional = true
	s.apply(next)
	return next
}
