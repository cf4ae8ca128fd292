package http

import (
	"encoding/json"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
)

type DailyLogHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
}

type dailyLogHandlerImpl struct {
	attendanceService attendance.AttendanceService
}

func NewDailyLogHandler(attendanceService attendance.AttendanceService) DailyLogHandler {
	return &dailyLogHandlerImpl{attendanceService: attendanceService}
}

// Create implements DailyLogHandler.
func (h *dailyLogHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	var req attendance.DailyLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.attendanceService.CreateDailyLog(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Daily log recorded", result)
}
