package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
)

var office = geo.Point{Latitude: -6.2088, Longitude: 106.8456}

func officeLocations() []location.LocationResponse {
	return []location.LocationResponse{{
		ID:           "hq",
		Name:         "Head Office",
		Latitude:     office.Latitude,
		Longitude:    office.Longitude,
		RadiusMeters: 150,
		WorkingHours: location.WorkingHoursResponse{
			Start:              "09:00",
			End:                "17:00",
			GracePeriodMinutes: 30,
			BreakEnd:           "13:00",
			Timezone:           "Asia/Jakarta",
		},
	}}
}

// fakeBackend applies the same one-record-per-day rules as the real service.
type fakeBackend struct {
	mu        sync.Mutex
	seq       int
	date      string
	now       func() time.Time
	records   []attendance.AttendanceResponse
	locations []location.LocationResponse
	calls     map[string]int

	lastCheckIn  attendance.CheckInRequest
	lastCheckOut attendance.CheckOutRequest

	checkLocationErr      error
	checkOutErr           error
	checkLocationOverride *location.CheckLocationResponse
	locationsErr          error
	beforeCheckIn         func(b *fakeBackend)
}

func newFakeBackend(now func() time.Time) *fakeBackend {
	return &fakeBackend{
		date:      "2026-03-02",
		now:       now,
		locations: officeLocations(),
		calls:     make(map[string]int),
	}
}

func (b *fakeBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// addRecord stores a record directly, as another device would.
func (b *fakeBackend) addRecord(checkIn time.Time, checkOut *time.Time) attendance.AttendanceResponse {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	rec := attendance.AttendanceResponse{
		ID:       fmt.Sprintf("att-%d", b.seq),
		UserID:   "user-1",
		WorkDate: b.date,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		WorkMode: "on_site",
		Status:   "present",
		Breaks:   []attendance.BreakResponse{},
	}
	b.records = append(b.records, rec)
	return rec
}

// closeAll checks out every open record, as another tab would.
func (b *fakeBackend) closeAll(at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.records {
		if b.records[i].CheckOut == nil {
			t := at
			b.records[i].CheckOut = &t
		}
	}
}

func (b *fakeBackend) Today(_ context.Context) (attendance.TodayResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["today"]++
	resp := attendance.TodayResponse{Date: b.date, Records: []attendance.AttendanceResponse{}}
	for _, r := range b.records {
		if r.WorkDate == b.date || r.CheckOut == nil {
			resp.Records = append(resp.Records, r)
		}
	}
	return resp, nil
}

func (b *fakeBackend) Locations(_ context.Context) ([]location.LocationResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["locations"]++
	if b.locationsErr != nil {
		return nil, b.locationsErr
	}
	return b.locations, nil
}

func (b *fakeBackend) CheckLocation(_ context.Context, req location.CheckLocationRequest) (location.CheckLocationResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["check_location"]++
	if b.checkLocationErr != nil {
		return location.CheckLocationResponse{}, b.checkLocationErr
	}
	if b.checkLocationOverride != nil {
		return *b.checkLocationOverride, nil
	}

	locs := make([]location.OrganizationLocation, 0, len(b.locations))
	for _, l := range b.locations {
		locs = append(locs, l.ToEntity())
	}
	match, err := location.ClassifyAny(geo.Point{Latitude: req.Latitude, Longitude: req.Longitude}, locs)
	if err != nil {
		return location.CheckLocationResponse{WorkMode: "remote"}, nil
	}
	resp := location.CheckLocationResponse{WorkMode: string(match.WorkMode), DistanceMeters: match.DistanceMeters}
	if match.WorkMode == attendance.WorkModeOnSite {
		id := match.Location.ID
		resp.LocationID = &id
	}
	return resp, nil
}

func (b *fakeBackend) CheckIn(_ context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error) {
	if b.beforeCheckIn != nil {
		b.beforeCheckIn(b)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["check_in"]++
	b.lastCheckIn = req

	for _, r := range b.records {
		if r.CheckOut == nil {
			return attendance.AttendanceResponse{}, attendance.ErrAlreadyCheckedIn
		}
		if r.WorkDate == b.date {
			return attendance.AttendanceResponse{}, attendance.ErrDailyLimitReached
		}
	}

	b.seq++
	rec := attendance.AttendanceResponse{
		ID:               fmt.Sprintf("att-%d", b.seq),
		UserID:           "user-1",
		WorkDate:         b.date,
		LocationID:       req.LocationID,
		CheckIn:          b.now(),
		WorkMode:         req.WorkMode,
		Status:           "present",
		CheckInLatitude:  req.Latitude,
		CheckInLongitude: req.Longitude,
		Breaks:           []attendance.BreakResponse{},
	}
	if req.Status != nil {
		rec.Status = *req.Status
	}
	b.records = append(b.records, rec)
	return rec, nil
}

func (b *fakeBackend) CheckOut(_ context.Context, req attendance.CheckOutRequest) (attendance.AttendanceResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["check_out"]++
	b.lastCheckOut = req
	if b.checkOutErr != nil {
		return attendance.AttendanceResponse{}, b.checkOutErr
	}

	for i := range b.records {
		r := &b.records[i]
		if r.ID != req.AttendanceID {
			continue
		}
		if r.CheckOut != nil {
			return attendance.AttendanceResponse{}, attendance.ErrNoActiveSession
		}
		now := b.now()
		r.CheckOut = &now
		for j := range r.Breaks {
			if r.Breaks[j].EndTime == nil {
				r.Breaks[j].EndTime = &now
				r.Breaks[j].Status = "late"
			}
		}
		worked := int(now.Sub(r.CheckIn).Minutes())
		r.WorkingMinutes = &worked
		r.PartialDay = worked < 240
		return *r, nil
	}
	return attendance.AttendanceResponse{}, attendance.ErrAttendanceNotFound
}

func (b *fakeBackend) StartBreak(_ context.Context, attendanceID string) (attendance.BreakResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["break_start"]++
	for i := range b.records {
		r := &b.records[i]
		if r.ID != attendanceID {
			continue
		}
		if r.CheckOut != nil {
			return attendance.BreakResponse{}, attendance.ErrNoActiveSession
		}
		for _, br := range r.Breaks {
			if br.EndTime == nil {
				return attendance.BreakResponse{}, attendance.ErrBreakAlreadyOpen
			}
		}
		b.seq++
		br := attendance.BreakResponse{ID: fmt.Sprintf("brk-%d", b.seq), AttendanceID: r.ID, StartTime: b.now(), Status: "on_time"}
		r.Breaks = append(r.Breaks, br)
		return br, nil
	}
	return attendance.BreakResponse{}, attendance.ErrAttendanceNotFound
}

func (b *fakeBackend) EndBreak(_ context.Context, attendanceID string) (attendance.BreakResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["break_end"]++
	for i := range b.records {
		r := &b.records[i]
		if r.ID != attendanceID {
			continue
		}
		for j := range r.Breaks {
			if r.Breaks[j].EndTime == nil {
				now := b.now()
				r.Breaks[j].EndTime = &now
				r.Breaks[j].Status = "on_time"
				return r.Breaks[j], nil
			}
		}
		return attendance.BreakResponse{}, attendance.ErrNoOpenBreak
	}
	return attendance.BreakResponse{}, attendance.ErrAttendanceNotFound
}

// scriptedLocator answers each call from a queue, repeating the last answer.
type scriptedLocator struct {
	mu       sync.Mutex
	answers  []locateResult
	requests []PositionRequest
}

func locatorReturning(answers ...locateResult) *scriptedLocator {
	return &scriptedLocator{answers: answers}
}

func (l *scriptedLocator) Locate(ctx context.Context, req PositionRequest) (geo.Point, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
	i := len(l.requests) - 1
	if i >= len(l.answers) {
		i = len(l.answers) - 1
	}
	return l.answers[i].point, l.answers[i].err
}

func (l *scriptedLocator) calls() []PositionRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]PositionRequest, len(l.requests))
	copy(out, l.requests)
	return out
}

// recordingConfirmer answers every prompt with answer and remembers the prompts.
type recordingConfirmer struct {
	mu      sync.Mutex
	answer  bool
	prompts []Prompt
}

func (c *recordingConfirmer) Confirm(_ context.Context, p Prompt) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, p)
	return c.answer, nil
}

func (c *recordingConfirmer) asked() []PromptKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]PromptKind, 0, len(c.prompts))
	for _, p := range c.prompts {
		kinds = append(kinds, p.Kind)
	}
	return kinds
}

type recordingSink struct {
	mu   sync.Mutex
	logs []attendance.DailyLogRequest
	err  error
}

func (s *recordingSink) CreateDailyLog(_ context.Context, req attendance.DailyLogRequest) (attendance.DailyLogResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return attendance.DailyLogResponse{}, s.err
	}
	s.logs = append(s.logs, req)
	return attendance.DailyLogResponse{ID: "log", AttendanceID: req.AttendanceID, Kind: req.Kind}, nil
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, l.Kind)
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var errDenied = fmt.Errorf("user blocked geolocation: %w", ErrPermissionDenied)

var errBoom = errors.New("boom")
