package attendance

import "errors"

// Attendance domain errors
var (
	// Check-in errors
	ErrDailyLimitReached    = errors.New("you have already checked in today")
	ErrAlreadyCheckedIn     = errors.New("an attendance session is already open")
	ErrOutsideAllowedRadius = errors.New("you are outside the allowed radius")

	// Check-out and break errors
	ErrNoActiveSession  = errors.New("no active attendance session")
	ErrBreakAlreadyOpen = errors.New("a break is already in progress")
	ErrNoOpenBreak      = errors.New("no break in progress")

	// General errors
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrUnauthorized       = errors.New("unauthorized to access this attendance record")
)
