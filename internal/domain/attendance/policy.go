package attendance

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// ClockTime is a wall-clock time of day, independent of any date or zone.
type ClockTime struct {
	Hour   int
	Minute int
	Second int
}

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (ClockTime, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return ClockTime{}, fmt.Errorf("invalid clock time %q: expected HH:MM or HH:MM:SS", s)
}

// MustParseClock is ParseClock for constants.
func MustParseClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) String() string {
	if c.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Add shifts c by d, wrapping at midnight.
func (c ClockTime) Add(d time.Duration) ClockTime {
	secs := (c.Hour*3600 + c.Minute*60 + c.Second + int(d.Seconds())) % 86400
	if secs < 0 {
		secs += 86400
	}
	return ClockTime{Hour: secs / 3600, Minute: secs % 3600 / 60, Second: secs % 60}
}

// On places c on the calendar day of t, in t's location.
func (c ClockTime) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, c.Second, 0, t.Location())
}

// Policy holds the organization's time rules. All comparisons happen in Location,
// never in the zone of the caller's clock.
type Policy struct {
	Location      *time.Location
	CheckInCutoff ClockTime
	WorkdayEnd    ClockTime
	BreakCutoff   ClockTime
	MinSession    time.Duration
}

// DefaultPolicy is used when an organization has no working-hours definition.
func DefaultPolicy() Policy {
	return Policy{
		Location:      time.UTC,
		CheckInCutoff: ClockTime{Hour: 9, Minute: 30},
		WorkdayEnd:    ClockTime{Hour: 17},
		BreakCutoff:   ClockTime{Hour: 13},
		MinSession:    4 * time.Hour,
	}
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Day returns the calendar day of now in the organization's zone.
func (p Policy) Day(now time.Time) string {
	return now.In(p.loc()).Format("2006-01-02")
}

// ClassifyCheckIn returns present unless now is after the check-in cutoff of its day.
func (p Policy) ClassifyCheckIn(now time.Time) Status {
	local := now.In(p.loc())
	if local.After(p.CheckInCutoff.On(local)) {
		return StatusLate
	}
	return StatusPresent
}

// ClassifyBreakEnd returns on_time only when the break ends strictly before the cutoff.
func (p Policy) ClassifyBreakEnd(end time.Time) BreakStatus {
	local := end.In(p.loc())
	if local.Before(p.BreakCutoff.On(local)) {
		return BreakOnTime
	}
	return BreakLate
}

// EndOfDay returns the workday end on the given YYYY-MM-DD day.
func (p Policy) EndOfDay(day string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", day, p.loc())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid work date %q: %w", day, err)
	}
	return p.WorkdayEnd.On(d), nil
}

// IsPartialDay reports whether worked falls below the minimum session.
func (p Policy) IsPartialDay(worked time.Duration) bool {
	return p.MinSession > 0 && worked < p.MinSession
}

// WorkingMinutes is checkOut - checkIn minus break time, never negative.
func WorkingMinutes(checkIn, checkOut time.Time, breakMinutes int) int {
	worked := int(checkOut.Sub(checkIn).Minutes()) - breakMinutes
	if worked < 0 {
		return 0
	}
	return worked
}
