package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/events"
)

// memoryStore enforces the same uniqueness rules as the Postgres indexes.
type memoryStore struct {
	mu       sync.Mutex
	seq      int
	records  map[string]attendance.Record
	breaks   map[string]attendance.BreakRecord
	logs     []attendance.DailyLog
	failList bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records: make(map[string]attendance.Record),
		breaks:  make(map[string]attendance.BreakRecord),
	}
}

func (m *memoryStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memoryStore) Create(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID != rec.UserID || r.CompanyID != rec.CompanyID {
			continue
		}
		if r.WorkDate == rec.WorkDate {
			return attendance.Record{}, attendance.ErrDailyLimitReached
		}
		if r.CheckOut == nil {
			return attendance.Record{}, attendance.ErrAlreadyCheckedIn
		}
	}
	rec.ID = m.nextID("att")
	rec.CreatedAt = rec.CheckIn
	rec.UpdatedAt = rec.CheckIn
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memoryStore) GetByID(_ context.Context, id string, companyID string) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok || r.CompanyID != companyID {
		return attendance.Record{}, attendance.ErrAttendanceNotFound
	}
	return r, nil
}

func (m *memoryStore) GetOpenSession(_ context.Context, userID string, companyID string) (*attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == userID && r.CompanyID == companyID && r.CheckOut == nil {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) ListByWorkDate(_ context.Context, userID string, companyID string, workDate string) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, fmt.Errorf("connection reset")
	}
	var out []attendance.Record
	for _, r := range m.records {
		if r.UserID == userID && r.CompanyID == companyID && r.WorkDate == workDate {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.Before(out[j].CheckIn) })
	return out, nil
}

func (m *memoryStore) CountByWorkDate(ctx context.Context, userID string, companyID string, workDate string) (int, error) {
	recs, err := m.ListByWorkDate(ctx, userID, companyID, workDate)
	return len(recs), err
}

func (m *memoryStore) Close(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.records[rec.ID]
	if !ok || stored.CheckOut != nil {
		return attendance.Record{}, attendance.ErrNoActiveSession
	}
	rec.Breaks = nil
	rec.UpdatedAt = *rec.CheckOut
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memoryStore) ListStaleOpenSessions(_ context.Context, before string) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.Record
	for _, r := range m.records {
		if r.CheckOut == nil && r.WorkDate < before {
			out = append(out, r)
		}
	}
	return out, nil
}

type memoryBreaks struct{ *memoryStore }

func (m memoryBreaks) Start(_ context.Context, b attendance.BreakRecord) (attendance.BreakRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.breaks {
		if existing.AttendanceID == b.AttendanceID && existing.EndTime == nil {
			return attendance.BreakRecord{}, attendance.ErrBreakAlreadyOpen
		}
	}
	b.ID = m.nextID("brk")
	m.breaks[b.ID] = b
	return b, nil
}

func (m memoryBreaks) GetOpen(_ context.Context, attendanceID string) (*attendance.BreakRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.breaks {
		if b.AttendanceID == attendanceID && b.EndTime == nil {
			open := b
			return &open, nil
		}
	}
	return nil, nil
}

func (m memoryBreaks) End(_ context.Context, breakID string, end time.Time, status attendance.BreakStatus) (attendance.BreakRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breaks[breakID]
	if !ok || b.EndTime != nil {
		return attendance.BreakRecord{}, attendance.ErrNoOpenBreak
	}
	b.EndTime = &end
	b.Status = status
	m.breaks[breakID] = b
	return b, nil
}

func (m memoryBreaks) ListByAttendance(_ context.Context, ids ...string) (map[string][]attendance.BreakRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]attendance.BreakRecord)
	for _, id := range ids {
		for _, b := range m.breaks {
			if b.AttendanceID == id {
				out[id] = append(out[id], b)
			}
		}
		sort.Slice(out[id], func(i, j int) bool { return out[id][i].StartTime.Before(out[id][j].StartTime) })
	}
	return out, nil
}

type memoryLogs struct{ *memoryStore }

func (m memoryLogs) Create(_ context.Context, log attendance.DailyLog) (attendance.DailyLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = m.nextID("log")
	m.logs = append(m.logs, log)
	return log, nil
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type staticLocations map[string][]location.OrganizationLocation

func (s staticLocations) Locations(_ context.Context, companyID string) ([]location.OrganizationLocation, error) {
	return s[companyID], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
