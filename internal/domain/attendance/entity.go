package attendance

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
)

type WorkMode string

const (
	WorkModeOnSite WorkMode = "on_site"
	WorkModeRemote WorkMode = "remote"
)

func (m WorkMode) Valid() bool {
	return m == WorkModeOnSite || m == WorkModeRemote
}

type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
)

type BreakStatus string

const (
	BreakOnTime BreakStatus = "on_time"
	BreakLate   BreakStatus = "late"
)

// Record is one check-in event. WorkMode and Status are fixed at check-in.
type Record struct {
	ID                  string
	UserID              string
	CompanyID           string
	WorkDate            string // YYYY-MM-DD in the organization's zone
	LocationID          *string
	CheckIn             time.Time
	CheckOut            *time.Time
	WorkMode            WorkMode
	Status              Status
	CheckInCoordinates  geo.Point
	CheckOutCoordinates *geo.Point
	WorkingMinutes      *int
	BreakMinutes        int
	PartialDay          bool
	Notes               *string
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Breaks []BreakRecord
}

// IsOpen reports whether the record is an open session.
func (r Record) IsOpen() bool {
	return r.CheckOut == nil
}

// OpenBreak returns the break without an end time, if any.
func (r Record) OpenBreak() *BreakRecord {
	for i := range r.Breaks {
		if r.Breaks[i].IsOpen() {
			b := r.Breaks[i]
			return &b
		}
	}
	return nil
}

type BreakRecord struct {
	ID           string
	AttendanceID string
	StartTime    time.Time
	EndTime      *time.Time
	Status       BreakStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (b BreakRecord) IsOpen() bool {
	return b.EndTime == nil
}

// Minutes returns the closed duration of the break, or the duration up to now when still open.
func (b BreakRecord) Minutes(now time.Time) int {
	end := now
	if b.EndTime != nil {
		end = *b.EndTime
	}
	if end.Before(b.StartTime) {
		return 0
	}
	return int(end.Sub(b.StartTime).Minutes())
}

type DailyLogKind string

const (
	DailyLogCheckIn  DailyLogKind = "check_in"
	DailyLogCheckOut DailyLogKind = "check_out"
)

// DailyLog is the auxiliary task-of-the-day linkage written after check-in/check-out.
type DailyLog struct {
	ID           string
	UserID       string
	CompanyID    string
	AttendanceID string
	Kind         DailyLogKind
	TaskID       *string
	Note         *string
	CreatedAt    time.Time
}
