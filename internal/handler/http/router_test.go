package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestSecret = "test-secret-key-for-jwt"

type stubAttendanceService struct {
	actor     jwt.Actor
	checkIn   attendance.CheckInRequest
	checkOut  attendance.CheckOutRequest
	breakReq  attendance.BreakRequest
	err       error
	responded attendance.AttendanceResponse
}

func (s *stubAttendanceService) capture(ctx context.Context) {
	s.actor, _ = jwt.ActorFromContext(ctx)
}

func (s *stubAttendanceService) GetCurrent(ctx context.Context) (attendance.AttendanceResponse, error) {
	s.capture(ctx)
	return s.responded, s.err
}

func (s *stubAttendanceService) GetToday(ctx context.Context) (attendance.TodayResponse, error) {
	s.capture(ctx)
	return attendance.TodayResponse{Date: "2026-03-02", Records: []attendance.AttendanceResponse{s.responded}}, s.err
}

func (s *stubAttendanceService) CheckIn(ctx context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error) {
	s.capture(ctx)
	s.checkIn = req
	return s.responded, s.err
}

func (s *stubAttendanceService) CheckOut(ctx context.Context, req attendance.CheckOutRequest) (attendance.AttendanceResponse, error) {
	s.capture(ctx)
	s.checkOut = req
	return s.responded, s.err
}

func (s *stubAttendanceService) StartBreak(ctx context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error) {
	s.capture(ctx)
	s.breakReq = req
	return attendance.BreakResponse{ID: "brk-1", AttendanceID: req.AttendanceID, Status: "on_time"}, s.err
}

func (s *stubAttendanceService) EndBreak(ctx context.Context, req attendance.BreakRequest) (attendance.BreakResponse, error) {
	s.capture(ctx)
	s.breakReq = req
	return attendance.BreakResponse{ID: "brk-1", AttendanceID: req.AttendanceID, Status: "late"}, s.err
}

func (s *stubAttendanceService) CreateDailyLog(ctx context.Context, req attendance.DailyLogRequest) (attendance.DailyLogResponse, error) {
	s.capture(ctx)
	return attendance.DailyLogResponse{ID: "log-1", AttendanceID: req.AttendanceID, Kind: req.Kind}, s.err
}

func (s *stubAttendanceService) CloseStaleSessions(context.Context, time.Time) (int, error) {
	return 0, nil
}

type stubLocationService struct{}

func (stubLocationService) List(context.Context) ([]location.LocationResponse, error) {
	return []location.LocationResponse{{ID: "hq", Name: "Head Office", RadiusMeters: 150}}, nil
}

func (stubLocationService) Check(_ context.Context, req location.CheckLocationRequest) (location.CheckLocationResponse, error) {
	return location.CheckLocationResponse{WorkMode: "remote", DistanceMeters: 5000, RadiusMeters: 150}, nil
}

type routerFixture struct {
	router     http.Handler
	jwtService jwt.Service
	service    *stubAttendanceService
	hub        *sse.Hub
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	jwtService, err := jwt.NewJWTService(handlerTestSecret, "1h")
	require.NoError(t, err)

	svc := &stubAttendanceService{responded: attendance.AttendanceResponse{ID: "att-1", WorkMode: "on_site", Status: "present"}}
	hub := sse.NewHub()

	router := NewRouter(jwtService, Handlers{
		Attendance: NewAttendanceHandler(svc),
		Location:   NewLocationHandler(stubLocationService{}),
		DailyLog:   NewDailyLogHandler(svc),
		Stream:     NewStreamHandler(hub, jwtService),
	}, RouterOptions{AppName: "attendance-test", Env: "test"})

	return &routerFixture{router: router, jwtService: jwtService, service: svc, hub: hub}
}

func (f *routerFixture) do(t *testing.T, method, path, body string, token string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var resp response.Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func (f *routerFixture) accessToken(t *testing.T) string {
	t.Helper()
	token, _, err := f.jwtService.GenerateAccessToken("user-1", "company-1")
	require.NoError(t, err)
	return token
}

func TestRouter_RequiresAccessToken(t *testing.T) {
	f := newRouterFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/api/v1/attendance/current", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	streamToken, _, err := f.jwtService.GenerateStreamToken("user-1", "company-1")
	require.NoError(t, err)
	rec, resp := f.do(t, http.MethodGet, "/api/v1/attendance/current", "", streamToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, response.CodeUnauthorized, resp.Error.Code)
}

func TestRouter_CheckIn(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"work_mode":"on_site","latitude":-6.2088,"longitude":106.8456,"status":"present"}`

	rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/check-in", body, f.accessToken(t))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, jwt.Actor{UserID: "user-1", CompanyID: "company-1"}, f.service.actor)
	assert.Equal(t, "on_site", f.service.checkIn.WorkMode)
	assert.InDelta(t, -6.2088, f.service.checkIn.Latitude, 1e-9)
}

func TestRouter_CheckInRejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"malformed body", `{"work_mode":`, nil, http.StatusBadRequest, response.CodeBadRequest},
		{"missing work mode", `{"latitude":1,"longitude":1}`, nil, http.StatusUnprocessableEntity, response.CodeValidation},
		{"daily limit", `{"work_mode":"remote","latitude":1,"longitude":1}`, attendance.ErrDailyLimitReached, http.StatusConflict, response.CodeDailyLimitReached},
		{"open session", `{"work_mode":"remote","latitude":1,"longitude":1}`, attendance.ErrAlreadyCheckedIn, http.StatusConflict, response.CodeAlreadyCheckedIn},
		{"outside fence", `{"work_mode":"on_site","latitude":1,"longitude":1}`, attendance.ErrOutsideAllowedRadius, http.StatusUnprocessableEntity, response.CodeOutsideAllowedRadius},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.service.err = tt.serviceErr

			rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/check-in", tt.body, f.accessToken(t))
			assert.Equal(t, tt.wantStatus, rec.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestRouter_CheckOutWithoutBody(t *testing.T) {
	f := newRouterFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/attendance/check-out/att-1", "", f.accessToken(t))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "att-1", f.service.checkOut.AttendanceID)
	assert.Nil(t, f.service.checkOut.Latitude)

	f.service.err = attendance.ErrNoActiveSession
	rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/check-out/att-1", `{}`, f.accessToken(t))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, response.CodeNoActiveSession, resp.Error.Code)
}

func TestRouter_Breaks(t *testing.T) {
	f := newRouterFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/attendance/att-1/breaks", "", f.accessToken(t))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "att-1", f.service.breakReq.AttendanceID)

	f.service.err = attendance.ErrNoOpenBreak
	rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/att-1/breaks/end", "", f.accessToken(t))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, response.CodeNoOpenBreak, resp.Error.Code)
}

func TestRouter_CurrentNotFound(t *testing.T) {
	f := newRouterFixture(t)
	f.service.err = attendance.ErrAttendanceNotFound

	rec, resp := f.do(t, http.MethodGet, "/api/v1/attendance/current", "", f.accessToken(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodeAttendanceNotFound, resp.Error.Code)
}

func TestRouter_Location(t *testing.T) {
	f := newRouterFixture(t)

	rec, resp := f.do(t, http.MethodGet, "/api/v1/location", "", f.accessToken(t))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, resp = f.do(t, http.MethodPost, "/api/v1/location/check", `{"latitude":-6.25,"longitude":106.85}`, f.accessToken(t))
	assert.Equal(t, http.StatusOK, rec.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "remote", data["work_mode"])
}

func TestRouter_DailyLog(t *testing.T) {
	f := newRouterFixture(t)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/daily-logs", `{"attendance_id":"att-1","kind":"check_in"}`, f.accessToken(t))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := f.do(t, http.MethodPost, "/api/v1/daily-logs", `{"attendance_id":"att-1","kind":"lunch"}`, f.accessToken(t))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, resp.Error.Details, "kind")
}

func TestRouter_Metrics(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_EventStream(t *testing.T) {
	f := newRouterFixture(t)
	server := httptest.NewServer(f.router)
	defer server.Close()

	rec, resp := f.do(t, http.MethodPost, "/api/v1/attendance/events/token", "", f.accessToken(t))
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	token := data["token"].(string)
	assert.EqualValues(t, 300, data["expires_in"])

	// An access token is not accepted on the stream
	res, err := http.Get(server.URL + "/api/v1/attendance/events?token=" + f.accessToken(t))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/attendance/events?token="+token, nil)
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	reader := bufio.NewReader(res.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	// Skip the rest of the connected frame
	for line != "\n" {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return f.hub.SubscriberCount(sse.Key("company-1", "user-1")) == 1
	}, time.Second, 10*time.Millisecond)
	f.hub.Publish(sse.Key("company-1", "user-1"), sse.NewEvent("attendance.checked_in", map[string]string{"id": "att-1"}))

	var frame []string
	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			break
		}
		frame = append(frame, strings.TrimSuffix(line, "\n"))
	}
	require.Len(t, frame, 3)
	assert.True(t, strings.HasPrefix(frame[0], "id: "))
	assert.Equal(t, "event: attendance.checked_in", frame[1])
	assert.Equal(t, `data: {"id":"att-1"}`, frame[2])
}
