package workflow

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
)

type State string

const (
	StateNotCheckedIn State = "NOT_CHECKED_IN"
	StateCheckedIn    State = "CHECKED_IN"
	StateCheckedOut   State = "CHECKED_OUT"
)

type BreakState string

const (
	BreakOff BreakState = "OFF_BREAK"
	BreakOn  BreakState = "ON_BREAK"
)

// DailyLimit is the number of check-ins allowed per calendar day.
const DailyLimit = 1

// Snapshot is the client's view of today's attendance.
type Snapshot struct {
	// Date is the backend's current day in the organization's zone.
	Date        string
	State       State
	RecordID    string
	LocationID  *string
	WorkMode    attendance.WorkMode
	Status      attendance.Status
	CheckInTime *time.Time
	BreakState  BreakState
	OpenBreak   *attendance.BreakResponse
	// TodayCount is the number of records the backend holds for Date.
	TodayCount int
	// LimitArmed blocks further check-ins for the rest of the day.
	LimitArmed bool
	// Provisional marks an optimistic update not yet confirmed by reconciliation.
	Provisional bool
}

// Derive computes the snapshot for the backend's view of today. It is pure, so
// deriving the same records twice yields equal snapshots.
func Derive(today attendance.TodayResponse) Snapshot {
	snap := Snapshot{
		Date:       today.Date,
		State:      StateNotCheckedIn,
		BreakState: BreakOff,
	}

	for _, r := range today.Records {
		if r.WorkDate == today.Date {
			snap.TodayCount++
		}
	}

	// An open record wins, including one carried over from an earlier day
	for i := range today.Records {
		r := today.Records[i]
		if r.CheckOut != nil {
			continue
		}
		bindRecord(&snap, r)
		snap.State = StateCheckedIn
		snap.LimitArmed = snap.TodayCount >= DailyLimit
		return snap
	}

	if len(today.Records) > 0 {
		bindRecord(&snap, today.Records[len(today.Records)-1])
		snap.State = StateCheckedOut
		snap.LimitArmed = snap.TodayCount >= DailyLimit
	}
	return snap
}

func bindRecord(snap *Snapshot, r attendance.AttendanceResponse) {
	checkIn := r.CheckIn
	snap.RecordID = r.ID
	snap.LocationID = r.LocationID
	snap.WorkMode = attendance.WorkMode(r.WorkMode)
	snap.Status = attendance.Status(r.Status)
	snap.CheckInTime = &checkIn
	snap.BreakState = BreakOff
	snap.OpenBreak = nil

	if r.CheckOut != nil {
		return
	}
	for i := range r.Breaks {
		if r.Breaks[i].EndTime == nil {
			b := r.Breaks[i]
			snap.BreakState = BreakOn
			snap.OpenBreak = &b
			return
		}
	}
}

// CheckedInFor reports how long the bound session has been open at now.
func (s Snapshot) CheckedInFor(now time.Time) time.Duration {
	if s.State != StateCheckedIn || s.CheckInTime == nil {
		return 0
	}
	return now.Sub(*s.CheckInTime)
}
