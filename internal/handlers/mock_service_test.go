package handlers

import (
	"context"
	"net/http"

	"battery_scheduler/internal/models"
	"battery_scheduler/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockScheduler struct {
	res      service.RunResult
	err      error
	lastMode models.Mode
	calls    int
	ctxErr   error
}

func (m *mockScheduler) Run(ctx context.Context, mode models.Mode) (service.RunResult, error) {
	m.calls++
	m.lastMode = mode
	m.ctxErr = ctx.Err()
	return m.res, m.err
}

type mockMonitoring struct {
	view    service.ScheduleView
	viewErr error
	runs    []models.RunStatus
	runsErr error
}

func (m *mockMonitoring) CurrentSchedule(context.Context) (service.ScheduleView, error) {
	return m.view, m.viewErr
}

func (m *mockMonitoring) LastRuns(context.Context) ([]models.RunStatus, error) {
	return m.runs, m.runsErr
}

type mockEventLog struct {
	resp       []models.ScheduleEvent
	err        error
	lastFilter service.LogFilter

	// Since serves stream from the cursor onwards.
	stream    []models.ScheduleEvent
	sinceErr  error
	sinceArgs []int64
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.ScheduleEvent, error) {
	m.lastFilter = f
	return m.resp, m.err
}

func (m *mockEventLog) Since(_ context.Context, afterSeq int64, limit int) ([]models.ScheduleEvent, error) {
	m.sinceArgs = append(m.sinceArgs, afterSeq)
	if m.sinceErr != nil {
		return nil, m.sinceErr
	}
	var out []models.ScheduleEvent
	for _, e := range m.stream {
		if e.Seq > afterSeq && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
