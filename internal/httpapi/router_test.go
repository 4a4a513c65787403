package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/health"
	"github.com/Kocoro-lab/interplay/internal/report"
	"github.com/Kocoro-lab/interplay/internal/schedules"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

type fakeService struct {
	gotClient  string
	gotOpts    report.Options
	generated  error
	latest     *report.Summary
	failed     []string
	stuckAfter time.Duration
	schedules  []*schedules.Schedule
}

func (f *fakeService) GenerateReport(_ context.Context, clientID string, opts report.Options) (*report.Accepted, error) {
	f.gotClient, f.gotOpts = clientID, opts
	if f.generated != nil {
		return nil, f.generated
	}
	return &report.Accepted{ReportID: "r-1", Metadata: report.Metadata{ClientID: clientID, Status: db.StatusPending}}, nil
}

func (f *fakeService) GetLatestReport(_ context.Context, clientID string) (*report.Summary, error) {
	if f.latest == nil {
		return nil, fmt.Errorf("%w: no runs for client %s", db.ErrNotFound, clientID)
	}
	return f.latest, nil
}

func (f *fakeService) GetReportDebug(_ context.Context, reportID string) (*report.Debug, error) {
	if reportID == "bad" {
		return nil, report.ErrInvalidID
	}
	return &report.Debug{Run: &db.ReportRun{ClientID: "acme"}, Workflow: report.WorkflowInfo{Status: "RUNNING"}}, nil
}

func (f *fakeService) MarkStuckFailed(_ context.Context, reportID, reason string) error {
	if reportID == "done" {
		return db.ErrTerminalStatus
	}
	f.failed = append(f.failed, reportID+":"+reason)
	return nil
}

func (f *fakeService) FailStuckRuns(_ context.Context, olderThan time.Duration, _ string) ([]string, error) {
	f.stuckAfter = olderThan
	return nil, nil
}

func (f *fakeService) CreateSchedule(_ context.Context, in schedules.CreateInput) (*schedules.Schedule, error) {
	if in.CronExpression == "" {
		return nil, schedules.ErrInvalidCronExpression
	}
	s := &schedules.Schedule{ClientID: in.ClientID, CronExpression: in.CronExpression, Status: schedules.StatusActive}
	f.schedules = append(f.schedules, s)
	return s, nil
}

func (f *fakeService) ListSchedules(context.Context, string) ([]*schedules.Schedule, error) {
	return f.schedules, nil
}

func (f *fakeService) DeleteSchedule(context.Context, string) error {
	return schedules.ErrScheduleNotFound
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerateReportAccepted(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(svc, nil, "", zap.NewNop())

	rec := do(t, h, http.MethodPost, "/api/v1/clients/acme/reports", `{"days":14,"trigger":"manual","business_type":"ecommerce"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var acc report.Accepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	assert.Equal(t, "r-1", acc.ReportID)
	assert.Equal(t, "acme", svc.gotClient)
	assert.Equal(t, 14, svc.gotOpts.Days)
	assert.Equal(t, db.TriggerManual, svc.gotOpts.Trigger)

	// An empty body uses service defaults.
	rec = do(t, h, http.MethodPost, "/api/v1/clients/acme/reports", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/clients/acme/reports", `{"days":"ten"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: got 400", report.ErrInvalidDays), http.StatusBadRequest},
		{fmt.Errorf("%w: \"crypto\"", skills.ErrUnknownBusinessType), http.StatusBadRequest},
		{fmt.Errorf("%w: timeout", report.ErrStartFailed), http.StatusBadGateway},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := NewRouter(&fakeService{generated: tc.err}, nil, "", zap.NewNop())
		rec := do(t, h, http.MethodPost, "/api/v1/clients/acme/reports", `{}`)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestLatestAndDebug(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(svc, nil, "", zap.NewNop())

	rec := do(t, h, http.MethodGet, "/api/v1/clients/acme/reports/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.latest = &report.Summary{ReportID: "r-1", Status: db.StatusCompleted}
	rec = do(t, h, http.MethodGet, "/api/v1/clients/acme/reports/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)

	rec = do(t, h, http.MethodGet, "/api/v1/clients/acme/reports/latest?format=markdown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "No changes recommended")

	rec = do(t, h, http.MethodGet, "/api/v1/reports/abc/debug", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"RUNNING"`)

	rec = do(t, h, http.MethodGet, "/api/v1/reports/bad/debug", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(svc, nil, "s3cret", zap.NewNop())

	rec := do(t, h, http.MethodPost, "/api/v1/reports/r-1/fail", `{"reason":"worker lost"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/reports/r-1/fail", `{"reason":"worker lost"}`, "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"r-1:worker lost"}, svc.failed)

	rec = do(t, h, http.MethodPost, "/api/v1/reports/done/fail", "", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/admin/reports/fail-stuck", `{"older_than":"90m"}`, "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"failed":[]}`, rec.Body.String())
	assert.Equal(t, 90*time.Minute, svc.stuckAfter)

	rec = do(t, h, http.MethodPost, "/api/v1/admin/reports/fail-stuck", `{"older_than":"soon"}`, "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	open := NewRouter(svc, nil, "", zap.NewNop())
	rec = do(t, open, http.MethodPost, "/api/v1/reports/r-1/fail", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScheduleRoutes(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(svc, nil, "", zap.NewNop())

	rec := do(t, h, http.MethodGet, "/api/v1/clients/acme/schedules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"schedules":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/clients/acme/schedules", `{"business_type":"ecommerce","cron_expression":"0 6 * * 1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/clients/acme/schedules", `{"business_type":"ecommerce"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/schedules/xyz", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	hm := health.NewManager(zap.NewNop())
	require.NoError(t, hm.RegisterChecker(health.NewPingChecker("database", true, func(context.Context) error {
		return fmt.Errorf("connection refused")
	})))
	h := NewRouter(&fakeService{}, hm, "", zap.NewNop())

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	rec := do(t, h, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
