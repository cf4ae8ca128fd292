package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
)

// Transactor runs fn in one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LocationProvider returns a company's geofences.
type LocationProvider interface {
	Locations(ctx context.Context, companyID string) ([]location.OrganizationLocation, error)
}

type AttendanceServiceImpl struct {
	tx Transactor
	attendance.AttendanceRepository
	breaks         attendance.BreakRepository
	dailyLogs      attendance.DailyLogRepository
	locations      LocationProvider
	publisher      events.Publisher
	hub            *sse.Hub
	fallback       attendance.Policy
	publishTimeout time.Duration
	now            func() time.Time
}

type Option func(*AttendanceServiceImpl)

// WithClock replaces the server clock.
func WithClock(now func() time.Time) Option {
	return func(s *AttendanceServiceImpl) { s.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *AttendanceServiceImpl) { s.publisher = p }
}

func WithHub(h *sse.Hub) Option {
	return func(s *AttendanceServiceImpl) { s.hub = h }
}

func NewAttendanceService(
	tx Transactor,
	attendanceRepo attendance.AttendanceRepository,
	breakRepo attendance.BreakRepository,
	dailyLogRepo attendance.DailyLogRepository,
	locations LocationProvider,
	fallback attendance.Policy,
	opts ...Option,
) *AttendanceServiceImpl {
	s := &AttendanceServiceImpl{
		tx:                   tx,
		AttendanceRepository: attendanceRepo,
		breaks:               breakRepo,
		dailyLogs:            dailyLogRepo,
		locations:            locations,
		publisher:            events.NopPublisher{},
		fallback:             fallback,
		publishTimeout:       2 * time.Second,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// policyFor resolves the time policy of a record's location.
func (s *AttendanceServiceImpl) policyFor(locs []location.OrganizationLocation, locationID *string) (attendance.Policy, error) {
	return location.ResolvePolicy(locs, locationID, s.fallback)
}

// companyPolicy is the policy that defines a company's calendar day.
func (s *AttendanceServiceImpl) companyPolicy(ctx context.Context, companyID string) (attendance.Policy, []location.OrganizationLocation, error) {
	locs, err := s.locations.Locations(ctx, companyID)
	if err != nil {
		return attendance.Policy{}, nil, fmt.Errorf("failed to load locations: %w", err)
	}
	p, err := s.policyFor(locs, nil)
	if err != nil {
		return attendance.Policy{}, nil, err
	}
	return p, locs, nil
}

func (s *AttendanceServiceImpl) withBreaks(ctx context.Context, records []attendance.Record) ([]attendance.Record, error) {
	if len(records) == 0 {
		return records, nil
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	byRecord, err := s.breaks.ListByAttendance(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to load breaks: %w", err)
	}
	for i := range records {
		records[i].Breaks = byRecord[records[i].ID]
	}
	return records, nil
}

// ownedRecord loads a record and checks it belongs to the caller.
func (s *AttendanceServiceImpl) ownedRecord(ctx context.Context, actor jwt.Actor, id string) (attendance.Record, error) {
	rec, err := s.AttendanceRepository.GetByID(ctx, id, actor.CompanyID)
	if err != nil {
		return attendance.Record{}, err
	}
	if rec.UserID != actor.UserID {
		return attendance.Record{}, attendance.ErrUnauthorized
	}
	return rec, nil
}

// GetCurrent implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetCurrent(ctx context.Context) (attendance.AttendanceResponse, error) {
	today, err := s.GetToday(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	if len(today.Records) == 0 {
		return attendance.AttendanceResponse{}, attendance.ErrAttendanceNotFound
	}

	for _, r := range today.Records {
		if r.CheckOut == nil {
			return r, nil
		}
	}
	return today.Records[len(today.Records)-1], nil
}

// GetToday implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) GetToday(ctx context.Context) (attendance.TodayResponse, error) {
	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return attendance.TodayResponse{}, err
	}

	policy, _, err := s.companyPolicy(ctx, actor.CompanyID)
	if err != nil {
		return attendance.TodayResponse{}, err
	}
	day := policy.Day(s.now())

	records, err := s.AttendanceRepository.ListByWorkDate(ctx, actor.UserID, actor.CompanyID, day)
	if err != nil {
		return attendance.TodayResponse{}, fmt.Errorf("failed to list today's attendance: %w", err)
	}

	// An open session from an earlier day still counts as the current one
	open, err := s.AttendanceRepository.GetOpenSession(ctx, actor.UserID, actor.CompanyID)
	if err != nil {
		return attendance.TodayResponse{}, err
	}
	if open != nil && open.WorkDate != day {
		records = append([]attendance.Record{*open}, records...)
	}

	records, err = s.withBreaks(ctx, records)
	if err != nil {
		return attendance.TodayResponse{}, err
	}

	resp := attendance.TodayResponse{Date: day, Records: make([]attendance.AttendanceResponse, 0, len(records))}
	for _, r := range records {
		resp.Records = append(resp.Records, attendance.ToResponse(r))
	}
	return resp, nil
}

// CheckIn implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CheckIn(ctx context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	dayPolicy, locs, err := s.companyPolicy(ctx, actor.CompanyID)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	pos := geo.Point{Latitude: req.Latitude, Longitude: req.Longitude}
	workMode := attendance.WorkModeRemote
	var locationID *string

	match, err := location.ClassifyAny(pos, locs)
	switch {
	case err == nil:
		workMode = match.WorkMode
		if match.WorkMode == attendance.WorkModeOnSite {
			id := match.Location.ID
			locationID = &id
		}
	case errors.Is(err, location.ErrNoLocationsConfigured):
		// Without a fence every check-in is remote
	default:
		return attendance.AttendanceResponse{}, err
	}

	claimed := attendance.WorkMode(req.WorkMode)
	if claimed == attendance.WorkModeOnSite && workMode != attendance.WorkModeOnSite {
		metrics.RecordRejection("check_in", "outside_allowed_radius")
		return attendance.AttendanceResponse{}, attendance.ErrOutsideAllowedRadius
	}
	if claimed != workMode {
		slog.InfoContext(ctx, "check-in work mode corrected by server",
			"user_id", actor.UserID, "claimed", claimed, "recorded", workMode)
	}

	statusPolicy, err := s.policyFor(locs, locationID)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	now := s.now().UTC()
	status := statusPolicy.ClassifyCheckIn(now)
	if req.Status != nil && attendance.Status(strings.ToLower(*req.Status)) != status {
		metrics.RecordStatusMismatch()
		slog.InfoContext(ctx, "client status disagrees with server",
			"user_id", actor.UserID, "client_status", *req.Status, "server_status", status)
	}

	rec := attendance.Record{
		UserID:             actor.UserID,
		CompanyID:          actor.CompanyID,
		WorkDate:           dayPolicy.Day(now),
		LocationID:         locationID,
		CheckIn:            now,
		WorkMode:           workMode,
		Status:             status,
		CheckInCoordinates: pos,
		Notes:              req.Notes,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		open, err := s.AttendanceRepository.GetOpenSession(ctx, actor.UserID, actor.CompanyID)
		if err != nil {
			return err
		}
		if open != nil {
			return attendance.ErrAlreadyCheckedIn
		}

		count, err := s.AttendanceRepository.CountByWorkDate(ctx, actor.UserID, actor.CompanyID, rec.WorkDate)
		if err != nil {
			return err
		}
		if count > 0 {
			return attendance.ErrDailyLimitReached
		}

		// The unique index stays the final arbiter for concurrent requests
		created, err := s.AttendanceRepository.Create(ctx, rec)
		if err != nil {
			return err
		}
		rec = created
		return nil
	})
	if err != nil {
		s.recordRejection("check_in", err)
		return attendance.AttendanceResponse{}, err
	}

	metrics.RecordCheckIn(string(rec.WorkMode), string(rec.Status))
	resp := attendance.ToResponse(rec)
	s.notify(ctx, actor, rec.ID, resp, events.TypeCheckedIn)

	return resp, nil
}

// CheckOut implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CheckOut(ctx context.Context, req attendance.CheckOutRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	locs, err := s.locations.Locations(ctx, actor.CompanyID)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to load locations: %w", err)
	}

	var closed attendance.Record
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rec, err := s.ownedRecord(ctx, actor, req.AttendanceID)
		if err != nil {
			return err
		}
		if !rec.IsOpen() {
			return attendance.ErrNoActiveSession
		}

		policy, err := s.policyFor(locs, rec.LocationID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if now.Before(rec.CheckIn) {
			now = rec.CheckIn
		}
		if req.Latitude != nil && req.Longitude != nil {
			rec.CheckOutCoordinates = &geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}
		}
		if req.Notes != nil {
			rec.Notes = req.Notes
		}

		closed, err = s.closeSession(ctx, rec, now, policy)
		return err
	})
	if err != nil {
		s.recordRejection("check_out", err)
		return attendance.AttendanceResponse{}, err
	}

	metrics.RecordCheckOut(closed.PartialDay)
	resp := attendance.ToResponse(closed)
	types := []string{events.TypeCheckedOut}
	if closed.PartialDay {
		types = append(types, events.TypePartialDay)
	}
	s.notify(ctx, actor, closed.ID, resp, types...)

	return resp, nil
}

// closeSession ends any open break at end, then closes rec. It must run inside a transaction.
func (s *AttendanceServiceImpl) closeSession(ctx context.Context, rec attendance.Record, end time.Time, policy attendance.Policy) (attendance.Record, error) {
	open, err := s.breaks.GetOpen(ctx, rec.ID)
	if err != nil {
		return attendance.Record{}, err
	}
	if open != nil {
		breakEnd := end
		if breakEnd.Before(open.StartTime) {
			breakEnd = open.StartTime
		}
		if _, err := s.breaks.End(ctx, open.ID, breakEnd, policy.ClassifyBreakEnd(breakEnd)); err != nil {
			return attendance.Record{}, err
		}
	}

	byRecord, err := s.breaks.ListByAttendance(ctx, rec.ID)
	if err != nil {
		return attendance.Record{}, fmt.Errorf("failed to load breaks: %w", err)
	}
	breakMinutes := 0
	for _, b := range byRecord[rec.ID] {
		breakMinutes += b.Minutes(end)
	}

	working := attendance.WorkingMinutes(rec.CheckIn, end, breakMinutes)
	rec.CheckOut = &end
	rec.BreakMinutes = breakMinutes
	rec.WorkingMinutes = &working
	rec.PartialDay = policy.IsPartialDay(time.Duration(working) * time.Minute)

	closed, err := s.AttendanceRepository.Close(ctx, rec)
	if err != nil {
		return attendance.Record{}, err
	}
	closed.Breaks = byRecord[rec.ID]
	return closed, nil
}

// CreateDailyLog implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CreateDailyLog(ctx context.Context, req attendance.DailyLogRequest) (attendance.DailyLogResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.DailyLogResponse{}, err
	}

	actor, err := jwt.ActorFromContext(ctx)
	if err != nil {
		return attendance.DailyLogResponse{}, err
	}

	if _, err := s.ownedRecord(ctx, actor, req.AttendanceID); err != nil {
		return attendance.DailyLogResponse{}, err
	}

	log, err := s.dailyLogs.Create(ctx, attendance.DailyLog{
		UserID:       actor.UserID,
		CompanyID:    actor.CompanyID,
		AttendanceID: req.AttendanceID,
		Kind:         attendance.DailyLogKind(req.Kind),
		TaskID:       req.TaskID,
		Note:         req.Note,
	})
	if err != nil {
		return attendance.DailyLogResponse{}, err
	}

	resp := attendance.DailyLogResponse{
		ID:           log.ID,
		AttendanceID: log.AttendanceID,
		Kind:         string(log.Kind),
		CreatedAt:    log.CreatedAt,
	}
	s.publish(ctx, events.New(events.TypeDailyLog, actor.CompanyID, actor.UserID, log.AttendanceID, resp))

	return resp, nil
}

var _ attendance.AttendanceService = (*AttendanceServiceImpl)(nil)
