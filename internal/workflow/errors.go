package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
)

// Location acquisition failures
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrTimeout             = errors.New("location request timed out")
)

// ErrWorkflowBusy is returned when a check-in or check-out is already running.
var ErrWorkflowBusy = errors.New("another attendance action is in progress")

// PositionError reports a failed position lookup. It matches its Kind with errors.Is.
type PositionError struct {
	Mode Mode
	Kind error
	Err  error
}

func (e *PositionError) Error() string {
	if e.Err == nil || e.Err == e.Kind {
		return fmt.Sprintf("%s lookup: %v", e.Mode, e.Kind)
	}
	return fmt.Sprintf("%s lookup: %v: %v", e.Mode, e.Kind, e.Err)
}

func (e *PositionError) Is(target error) bool {
	return target == e.Kind
}

func (e *PositionError) Unwrap() error {
	return e.Err
}

// userMessager is implemented by errors that carry a message meant for the user,
// such as backend rejections.
type userMessager interface {
	UserMessage() string
}

var userMessages = []struct {
	err error
	msg string
}{
	{ErrPermissionDenied, "Location access was denied. Allow location access and try again."},
	{ErrPositionUnavailable, "Your location could not be determined. Try again from an open area."},
	{ErrTimeout, "Finding your location took too long. Please try again."},
	{ErrWorkflowBusy, "Please wait for the current attendance action to finish."},
	{geo.ErrLocationUnavailable, "The office location is not available yet. Reload and try again."},
	{attendance.ErrDailyLimitReached, "You have already checked in today."},
	{attendance.ErrAlreadyCheckedIn, "You are already checked in."},
	{attendance.ErrOutsideAllowedRadius, "You are outside the office zone."},
	{attendance.ErrNoActiveSession, "You have no active attendance session."},
	{attendance.ErrBreakAlreadyOpen, "A break is already in progress."},
	{attendance.ErrNoOpenBreak, "You are not on a break."},
	{attendance.ErrAttendanceNotFound, "No attendance record was found."},
	{attendance.ErrUnauthorized, "You are not allowed to change this attendance record."},
}

// UserMessage converts any workflow failure into one message fit for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	var um userMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The server took too long to respond. Please try again."
	}
	if errors.Is(err, context.Canceled) {
		return "The action was cancelled."
	}
	return "Something went wrong. Please try again."
}
