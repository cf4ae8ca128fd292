package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
)

type Outcome string

const (
	// OutcomeCompleted means the backend accepted the mutation.
	OutcomeCompleted Outcome = "completed"
	// OutcomeDeclined means the user cancelled a prompt. Nothing was written.
	OutcomeDeclined Outcome = "declined"
	// OutcomeResynced means the backend state had already moved on and the
	// store was reconciled instead of mutating.
	OutcomeResynced Outcome = "resynced"
)

type Result struct {
	Outcome  Outcome
	Snapshot Snapshot
	Record   *attendance.AttendanceResponse
	// DistanceMeters is the distance to the matched or nearest office at check-in.
	DistanceMeters float64
	// ClosedBreak is the break closed by checkout, as computed locally.
	ClosedBreak *attendance.BreakResponse
	PartialDay  bool
}

// Input carries the optional user-supplied parts of a workflow.
type Input struct {
	Notes  *string
	TaskID *string
}

// Orchestrator runs the check-in and check-out workflows. One workflow runs
// at a time; overlapping calls fail with ErrWorkflowBusy.
type Orchestrator struct {
	backend   Backend
	positions *PositionSource
	confirm   Confirmer
	store     *Store
	guard     *DailyLimitGuard
	breaks    *BreakTracker
	locations *LocationCache
	aux       *AuxiliaryDispatcher

	fallback   attendance.Policy
	crossCheck bool
	now        func() time.Time

	running atomic.Bool
}

type Option func(*Orchestrator)

// WithPolicy sets the policy used when the organization defines no working hours.
func WithPolicy(p attendance.Policy) Option {
	return func(o *Orchestrator) { o.fallback = p }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithAuxiliary(d *AuxiliaryDispatcher) Option {
	return func(o *Orchestrator) { o.aux = d }
}

// WithoutCrossCheck skips the server-side location classification.
func WithoutCrossCheck() Option {
	return func(o *Orchestrator) { o.crossCheck = false }
}

func NewOrchestrator(backend Backend, positions *PositionSource, confirm Confirmer, opts ...Option) *Orchestrator {
	store := NewStore(backend)
	o := &Orchestrator{
		backend:    backend,
		positions:  positions,
		confirm:    confirm,
		store:      store,
		guard:      NewDailyLimitGuard(store),
		breaks:     NewBreakTracker(store, backend),
		locations:  NewLocationCache(backend),
		fallback:   attendance.DefaultPolicy(),
		crossCheck: true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Store() *Store { return o.store }
func (o *Orchestrator) Breaks() *BreakTracker { return o.breaks }
func (o *Orchestrator) Guard() *DailyLimitGuard { return o.guard }
func (o *Orchestrator) Locations() *LocationCache { return o.locations }

// Load prepares a session: it refreshes the geofences and reconciles state.
func (o *Orchestrator) Load(ctx context.Context) (Snapshot, error) {
	if _, err := o.locations.Refresh(ctx); err != nil {
		slog.WarnContext(ctx, "organization locations unavailable", "error", err)
	}
	return o.store.Reconcile(ctx)
}

func (o *Orchestrator) acquire() error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrWorkflowBusy
	}
	return nil
}

func (o *Orchestrator) release() {
	o.running.Store(false)
}

// errDeclined ends a workflow early without an error.
var errDeclined = errors.New("declined by user")

// checkInFlow is the state threaded through the check-in steps.
type checkInFlow struct {
	input      Input
	position   geo.Point
	workMode   attendance.WorkMode
	locationID *string
	distance   float64
	locations  []location.OrganizationLocation
	status     attendance.Status
	record     attendance.AttendanceResponse
}

type checkInStep func(ctx context.Context, f *checkInFlow) error

// CheckIn runs the check-in workflow. On any failure the store keeps the
// backend's state and no record is created.
func (o *Orchestrator) CheckIn(ctx context.Context, in Input) (Result, error) {
	if err := o.acquire(); err != nil {
		return Result{}, err
	}
	defer o.release()

	flow := &checkInFlow{input: in}
	steps := []checkInStep{
		o.verifyDailyLimit,
		o.acquirePosition,
		o.classifyLocation,
		o.confirmRemote,
		o.classifyStatus,
		o.submitCheckIn,
	}
	for _, step := range steps {
		if err := step(ctx, flow); err != nil {
			if errors.Is(err, errDeclined) {
				return Result{Outcome: OutcomeDeclined, Snapshot: o.store.Snapshot(), DistanceMeters: flow.distance}, nil
			}
			return Result{Snapshot: o.store.Snapshot()}, err
		}
	}

	o.store.applyCheckIn(flow.record)
	snap := o.store.settle(ctx)
	o.aux.Dispatch(ctx, AuxiliaryEvent{
		AttendanceID: flow.record.ID,
		Kind:         attendance.DailyLogCheckIn,
		TaskID:       in.TaskID,
		Note:         in.Notes,
	})

	rec := flow.record
	return Result{Outcome: OutcomeCompleted, Snapshot: snap, Record: &rec, DistanceMeters: flow.distance}, nil
}

func (o *Orchestrator) verifyDailyLimit(ctx context.Context, _ *checkInFlow) error {
	return o.guard.Check(ctx)
}

func (o *Orchestrator) acquirePosition(ctx context.Context, f *checkInFlow) error {
	p, err := o.positions.GetPosition(ctx, ModeFast)
	if err != nil {
		return err
	}
	f.position = p
	return nil
}

// classifyLocation decides the work mode. The server's classification wins when
// it answers; otherwise the local geofence result stands.
func (o *Orchestrator) classifyLocation(ctx context.Context, f *checkInFlow) error {
	localErr := o.classifyLocally(ctx, f)
	if errors.Is(localErr, geo.ErrLocationUnavailable) {
		return localErr
	}

	if !o.crossCheck {
		return localErr
	}

	resp, err := o.backend.CheckLocation(ctx, location.CheckLocationRequest{
		Latitude:  f.position.Latitude,
		Longitude: f.position.Longitude,
	})
	if err != nil {
		if localErr != nil {
			return localErr
		}
		slog.WarnContext(ctx, "server location check failed, using local classification", "error", err)
		return nil
	}

	mode := attendance.WorkMode(resp.WorkMode)
	if !mode.Valid() {
		return fmt.Errorf("server returned unknown work mode %q", resp.WorkMode)
	}
	if localErr == nil && mode != f.workMode {
		slog.InfoContext(ctx, "server location check disagrees with local classification",
			"local", f.workMode, "server", mode, "distance_meters", resp.DistanceMeters)
	}
	f.workMode = mode
	f.locationID = nil
	if mode == attendance.WorkModeOnSite {
		f.locationID = resp.LocationID
	}
	f.distance = resp.DistanceMeters
	return nil
}

func (o *Orchestrator) classifyLocally(ctx context.Context, f *checkInFlow) error {
	locs, err := o.locations.Load(ctx)
	if err != nil {
		return err
	}
	f.locations = locs

	match, err := location.ClassifyAny(f.position, locs)
	switch {
	case err == nil:
		f.workMode = match.WorkMode
		f.distance = match.DistanceMeters
		if match.WorkMode == attendance.WorkModeOnSite {
			id := match.Location.ID
			f.locationID = &id
		}
		return nil
	case errors.Is(err, location.ErrNoLocationsConfigured):
		// Nothing to be inside of. Fences without coordinates never get here.
		f.workMode = attendance.WorkModeRemote
		return nil
	default:
		return err
	}
}

func (o *Orchestrator) confirmRemote(ctx context.Context, f *checkInFlow) error {
	if f.workMode != attendance.WorkModeRemote {
		return nil
	}
	prompt := PromptRemoteWork
	prompt.DistanceMeters = f.distance

	ok, err := o.confirm.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("failed to confirm remote work: %w", err)
	}
	if !ok {
		return errDeclined
	}
	return nil
}

// classifyStatus computes the provisional status in the organization's zone.
// The backend recomputes it from its own clock.
func (o *Orchestrator) classifyStatus(_ context.Context, f *checkInFlow) error {
	policy, err := location.ResolvePolicy(f.locations, f.locationID, o.fallback)
	if err != nil {
		return err
	}
	f.status = policy.ClassifyCheckIn(o.now())
	return nil
}

func (o *Orchestrator) submitCheckIn(ctx context.Context, f *checkInFlow) error {
	status := string(f.status)
	rec, err := o.backend.CheckIn(ctx, attendance.CheckInRequest{
		WorkMode:   string(f.workMode),
		Latitude:   f.position.Latitude,
		Longitude:  f.position.Longitude,
		LocationID: f.locationID,
		Status:     &status,
		Notes:      f.input.Notes,
	})
	if err != nil {
		if isBusinessRejection(err) {
			o.resync(ctx)
		}
		return err
	}
	f.record = rec
	return nil
}

// CheckOut runs the check-out workflow. A session already closed elsewhere is
// not an error: the store is reconciled and OutcomeResynced returned.
func (o *Orchestrator) CheckOut(ctx context.Context, in Input) (Result, error) {
	if err := o.acquire(); err != nil {
		return Result{}, err
	}
	defer o.release()

	ok, err := o.confirm.Confirm(ctx, PromptCheckOut)
	if err != nil {
		return Result{Snapshot: o.store.Snapshot()}, fmt.Errorf("failed to confirm check-out: %w", err)
	}
	if !ok {
		return Result{Outcome: OutcomeDeclined, Snapshot: o.store.Snapshot()}, nil
	}

	snap, err := o.store.Reconcile(ctx)
	if err != nil {
		return Result{Snapshot: o.store.Snapshot()}, err
	}
	if snap.State != StateCheckedIn {
		return Result{Outcome: OutcomeResynced, Snapshot: snap}, nil
	}
	closedBreak := closingBreak(snap, o.now(), o.localPolicy(snap))

	req := attendance.CheckOutRequest{AttendanceID: snap.RecordID, Notes: in.Notes}
	if p, err := o.positions.GetPosition(ctx, ModeFast); err == nil {
		req.Latitude = &p.Latitude
		req.Longitude = &p.Longitude
	} else if ctx.Err() != nil {
		return Result{Snapshot: snap}, ctx.Err()
	} else {
		slog.InfoContext(ctx, "checking out without a position", "error", err)
	}

	rec, err := o.backend.CheckOut(ctx, req)
	if err != nil {
		if errors.Is(err, attendance.ErrNoActiveSession) {
			return Result{Outcome: OutcomeResynced, Snapshot: o.resync(ctx)}, nil
		}
		if isBusinessRejection(err) {
			o.resync(ctx)
		}
		return Result{Snapshot: o.store.Snapshot()}, err
	}

	o.store.applyCheckOut(rec)
	snap = o.store.settle(ctx)
	o.aux.Dispatch(ctx, AuxiliaryEvent{
		AttendanceID: rec.ID,
		Kind:         attendance.DailyLogCheckOut,
		TaskID:       in.TaskID,
		Note:         in.Notes,
	})

	return Result{
		Outcome:     OutcomeCompleted,
		Snapshot:    snap,
		Record:      &rec,
		ClosedBreak: closedBreak,
		PartialDay:  rec.PartialDay,
	}, nil
}

// localPolicy is the policy of the bound record's location, from the cache when loaded.
func (o *Orchestrator) localPolicy(snap Snapshot) attendance.Policy {
	locs, err := o.locations.Locations()
	if err != nil {
		return o.fallback
	}
	policy, err := location.ResolvePolicy(locs, snap.LocationID, o.fallback)
	if err != nil {
		return o.fallback
	}
	return policy
}

func (o *Orchestrator) resync(ctx context.Context) Snapshot {
	snap, err := o.store.Reconcile(ctx)
	if err != nil {
		slog.WarnContext(ctx, "reconciliation after rejection failed", "error", err)
	}
	return snap
}
