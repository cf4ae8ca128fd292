package client

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
)

// Today returns the caller's records for the current day.
func (c *Client) Today(ctx context.Context) (attendance.TodayResponse, error) {
	var out attendance.TodayResponse
	err := c.get(ctx, "/api/v1/attendance/today", &out)
	return out, err
}

func (c *Client) Locations(ctx context.Context) ([]location.LocationResponse, error) {
	var out []location.LocationResponse
	err := c.get(ctx, "/api/v1/location/", &out)
	return out, err
}

func (c *Client) CheckLocation(ctx context.Context, req location.CheckLocationRequest) (location.CheckLocationResponse, error) {
	var out location.CheckLocationResponse
	err := c.post(ctx, "/api/v1/location/check", req, &out)
	return out, err
}

func (c *Client) CheckIn(ctx context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error) {
	var out attendance.AttendanceResponse
	err := c.post(ctx, "/api/v1/attendance/check-in", req, &out)
	return out, err
}

func (c *Client) CheckOut(ctx context.Context, req attendance.CheckOutRequest) (attendance.AttendanceResponse, error) {
	var out attendance.AttendanceResponse
	err := c.post(ctx, "/api/v1/attendance/check-out/"+escape(req.AttendanceID), req, &out)
	return out, err
}

func (c *Client) StartBreak(ctx context.Context, attendanceID string) (attendance.BreakResponse, error) {
	var out attendance.BreakResponse
	err := c.post(ctx, "/api/v1/attendance/"+escape(attendanceID)+"/breaks", nil, &out)
	return out, err
}

func (c *Client) EndBreak(ctx context.Context, attendanceID string) (attendance.BreakResponse, error) {
	var out attendance.BreakResponse
	err := c.post(ctx, "/api/v1/attendance/"+escape(attendanceID)+"/breaks/end", nil, &out)
	return out, err
}

func (c *Client) CreateDailyLog(ctx context.Context, req attendance.DailyLogRequest) (attendance.DailyLogResponse, error) {
	var out attendance.DailyLogResponse
	err := c.post(ctx, "/api/v1/daily-logs", req, &out)
	return out, err
}
