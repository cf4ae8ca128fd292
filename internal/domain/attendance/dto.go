package attendance

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// ========================================
// ATTENDANCE DTOs
// ========================================

type CheckInRequest struct {
	WorkMode   string  `json:"work_mode"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	LocationID *string `json:"location_id,omitempty"`
	// Status is the client's provisional classification; the server recomputes it.
	Status *string `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

func (r *CheckInRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.WorkMode) {
		errs = append(errs, validator.ValidationError{
			Field:   "work_mode",
			Message: "work_mode is required",
		})
	} else if !WorkMode(r.WorkMode).Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "work_mode",
			Message: "work_mode must be one of: on_site, remote",
		})
	}

	if !validator.IsValidLatitude(r.Latitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if !validator.IsValidLongitude(r.Longitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if r.Latitude == 0 && r.Longitude == 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "a check-in position is required",
		})
	}

	if r.Status != nil {
		validStatuses := []string{string(StatusPresent), string(StatusLate)}
		if !validator.IsInSlice(strings.ToLower(*r.Status), validStatuses) {
			errs = append(errs, validator.ValidationError{
				Field:   "status",
				Message: "status must be one of: present, late",
			})
		}
	}

	if r.Notes != nil && !validator.MaxLength(*r.Notes, 500) {
		errs = append(errs, validator.ValidationError{
			Field:   "notes",
			Message: "notes must not exceed 500 characters",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type CheckOutRequest struct {
	AttendanceID string   `json:"-"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Notes        *string  `json:"notes,omitempty"`
}

func (r *CheckOutRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.AttendanceID) {
		errs = append(errs, validator.ValidationError{
			Field:   "attendance_id",
			Message: "attendance_id is required",
		})
	}

	// Position is optional, but both halves must be present together
	if (r.Latitude == nil) != (r.Longitude == nil) {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude and longitude must be provided together",
		})
	}

	if r.Latitude != nil && !validator.IsValidLatitude(*r.Latitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if r.Longitude != nil && !validator.IsValidLongitude(*r.Longitude) {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if r.Notes != nil && !validator.MaxLength(*r.Notes, 500) {
		errs = append(errs, validator.ValidationError{
			Field:   "notes",
			Message: "notes must not exceed 500 characters",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type BreakRequest struct {
	AttendanceID string `json:"-"`
}

func (r *BreakRequest) Validate() error {
	if validator.IsEmpty(r.AttendanceID) {
		return validator.ValidationErrors{{
			Field:   "attendance_id",
			Message: "attendance_id is required",
		}}
	}
	return nil
}

type BreakResponse struct {
	ID           string     `json:"id"`
	AttendanceID string     `json:"attendance_id"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Status       string     `json:"status"`
}

type AttendanceResponse struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	WorkDate          string          `json:"work_date"`
	LocationID        *string         `json:"location_id,omitempty"`
	CheckIn           time.Time       `json:"check_in"`
	CheckOut          *time.Time      `json:"check_out,omitempty"`
	WorkMode          string          `json:"work_mode"`
	Status            string          `json:"status"`
	CheckInLatitude   float64         `json:"check_in_latitude"`
	CheckInLongitude  float64         `json:"check_in_longitude"`
	CheckOutLatitude  *float64        `json:"check_out_latitude,omitempty"`
	CheckOutLongitude *float64        `json:"check_out_longitude,omitempty"`
	WorkingMinutes    *int            `json:"working_minutes,omitempty"`
	BreakMinutes      int             `json:"break_minutes"`
	PartialDay        bool            `json:"partial_day"`
	Notes             *string         `json:"notes,omitempty"`
	Breaks            []BreakResponse `json:"breaks"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type TodayResponse struct {
	Date    string               `json:"date"`
	Records []AttendanceResponse `json:"records"`
}

// ========================================
// DAILY LOG DTOs
// ========================================

type DailyLogRequest struct {
	AttendanceID string  `json:"attendance_id"`
	Kind         string  `json:"kind"`
	TaskID       *string `json:"task_id,omitempty"`
	Note         *string `json:"note,omitempty"`
}

func (r *DailyLogRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.AttendanceID) {
		errs = append(errs, validator.ValidationError{
			Field:   "attendance_id",
			Message: "attendance_id is required",
		})
	}

	validKinds := []string{string(DailyLogCheckIn), string(DailyLogCheckOut)}
	if !validator.IsInSlice(r.Kind, validKinds) {
		errs = append(errs, validator.ValidationError{
			Field:   "kind",
			Message: "kind must be one of: check_in, check_out",
		})
	}

	if r.Note != nil && !validator.MaxLength(*r.Note, 1000) {
		errs = append(errs, validator.ValidationError{
			Field:   "note",
			Message: "note must not exceed 1000 characters",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type DailyLogResponse struct {
	ID           string    `json:"id"`
	AttendanceID string    `json:"attendance_id"`
	Kind         string    `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}

// ========================================
// MAPPING
// ========================================

// ToResponse converts a Record into its wire form.
func ToResponse(r Record) AttendanceResponse {
	resp := AttendanceResponse{
		ID:               r.ID,
		UserID:           r.UserID,
		WorkDate:         r.WorkDate,
		LocationID:       r.LocationID,
		CheckIn:          r.CheckIn,
		CheckOut:         r.CheckOut,
		WorkMode:         string(r.WorkMode),
		Status:           string(r.Status),
		CheckInLatitude:  r.CheckInCoordinates.Latitude,
		CheckInLongitude: r.CheckInCoordinates.Longitude,
		WorkingMinutes:   r.WorkingMinutes,
		BreakMinutes:     r.BreakMinutes,
		PartialDay:       r.PartialDay,
		Notes:            r.Notes,
		Breaks:           make([]BreakResponse, 0, len(r.Breaks)),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.CheckOutCoordinates != nil {
		lat, lon := r.CheckOutCoordinates.Latitude, r.CheckOutCoordinates.Longitude
		resp.CheckOutLatitude = &lat
		resp.CheckOutLongitude = &lon
	}
	for _, b := range r.Breaks {
		resp.Breaks = append(resp.Breaks, ToBreakResponse(b))
	}
	return resp
}

func ToBreakResponse(b BreakRecord) BreakResponse {
	return BreakResponse{
		ID:           b.ID,
		AttendanceID: b.AttendanceID,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		Status:       string(b.Status),
	}
}

// ToRecord converts the wire form back into a Record.
func (a AttendanceResponse) ToRecord() Record {
	rec := Record{
		ID:                 a.ID,
		UserID:             a.UserID,
		WorkDate:           a.WorkDate,
		LocationID:         a.LocationID,
		CheckIn:            a.CheckIn,
		CheckOut:           a.CheckOut,
		WorkMode:           WorkMode(a.WorkMode),
		Status:             Status(a.Status),
		CheckInCoordinates: geo.Point{Latitude: a.CheckInLatitude, Longitude: a.CheckInLongitude},
		WorkingMinutes:     a.WorkingMinutes,
		BreakMinutes:       a.BreakMinutes,
		PartialDay:         a.PartialDay,
		Notes:              a.Notes,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if a.CheckOutLatitude != nil && a.CheckOutLongitude != nil {
		rec.CheckOutCoordinates = &geo.Point{Latitude: *a.CheckOutLatitude, Longitude: *a.CheckOutLongitude}
	}
	for _, b := range a.Breaks {
		rec.Breaks = append(rec.Breaks, b.ToRecord())
	}
	return rec
}

func (b BreakResponse) ToRecord() BreakRecord {
	return BreakRecord{
		ID:           b.ID,
		AttendanceID: b.AttendanceID,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		Status:       BreakStatus(b.Status),
	}
}
