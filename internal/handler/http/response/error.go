package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// Error codes shared with API clients
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeValidation    = "VALIDATION_ERROR"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeInternal      = "INTERNAL_SERVER_ERROR"
	CodeEncodingError = "ENCODING_ERROR"

	CodeDailyLimitReached     = "DAILY_LIMIT_REACHED"
	CodeAlreadyCheckedIn      = "ALREADY_CHECKED_IN"
	CodeOutsideAllowedRadius  = "OUTSIDE_ALLOWED_RADIUS"
	CodeNoActiveSession       = "NO_ACTIVE_SESSION"
	CodeBreakAlreadyOpen      = "BREAK_ALREADY_OPEN"
	CodeNoOpenBreak           = "NO_OPEN_BREAK"
	CodeAttendanceNotFound    = "ATTENDANCE_NOT_FOUND"
	CodeLocationNotFound      = "LOCATION_NOT_FOUND"
	CodeNoLocationsConfigured = "NO_LOCATIONS_CONFIGURED"
	CodeLocationUnavailable   = "LOCATION_UNAVAILABLE"
)

type domainError struct {
	err     error
	status  int
	code    string
	message string
}

var domainErrors = []domainError{
	// Attendance domain errors
	{attendance.ErrDailyLimitReached, http.StatusConflict, CodeDailyLimitReached, "You have already checked in today"},
	{attendance.ErrAlreadyCheckedIn, http.StatusConflict, CodeAlreadyCheckedIn, "An attendance session is already open"},
	{attendance.ErrOutsideAllowedRadius, http.StatusUnprocessableEntity, CodeOutsideAllowedRadius, "You are outside the allowed radius"},
	{attendance.ErrNoActiveSession, http.StatusConflict, CodeNoActiveSession, "No active attendance session"},
	{attendance.ErrBreakAlreadyOpen, http.StatusConflict, CodeBreakAlreadyOpen, "A break is already in progress"},
	{attendance.ErrNoOpenBreak, http.StatusConflict, CodeNoOpenBreak, "No break in progress"},
	{attendance.ErrAttendanceNotFound, http.StatusNotFound, CodeAttendanceNotFound, "Attendance record not found"},
	{attendance.ErrUnauthorized, http.StatusForbidden, CodeForbidden, "Not allowed to access this attendance record"},

	// Location domain errors
	{location.ErrLocationNotFound, http.StatusNotFound, CodeLocationNotFound, "Location not found"},
	{location.ErrNoLocationsConfigured, http.StatusNotFound, CodeNoLocationsConfigured, "No office location is configured"},
	{geo.ErrLocationUnavailable, http.StatusUnprocessableEntity, CodeLocationUnavailable, "Location unavailable"},

	// Auth errors
	{jwt.ErrMissingClaims, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized"},
}

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			Error(w, de.status, de.code, de.message)
			return
		}
	}

	slog.Error("Unhandled error", "error", err)
	InternalServerError(w, "An unexpected error occurred")
}

// ErrorFromCode returns the domain error behind a response code, or nil when
// the code is generic.
func ErrorFromCode(code string) error {
	for _, de := range domainErrors {
		if de.code == code && de.code != CodeUnauthorized {
			return de.err
		}
	}
	return nil
}
