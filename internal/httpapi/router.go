// Package httpapi serves the report operations over HTTP with chi.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/health"
	"github.com/Kocoro-lab/interplay/internal/report"
	"github.com/Kocoro-lab/interplay/internal/schedules"
)

// ReportService is the part of report.Service the API needs.
type ReportService interface {
	GenerateReport(ctx context.Context, clientID string, opts report.Options) (*report.Accepted, error)
	GetLatestReport(ctx context.Context, clientID string) (*report.Summary, error)
	GetReportDebug(ctx context.Context, reportID string) (*report.Debug, error)
	MarkStuckFailed(ctx context.Context, reportID, reason string) error
	FailStuckRuns(ctx context.Context, olderThan time.Duration, reason string) ([]string, error)
	CreateSchedule(ctx context.Context, in schedules.CreateInput) (*schedules.Schedule, error)
	ListSchedules(ctx context.Context, clientID string) ([]*schedules.Schedule, error)
	DeleteSchedule(ctx context.Context, scheduleID string) error
}

// Handler holds the API dependencies.
type Handler struct {
	svc        ReportService
	health     *health.Manager
	adminToken string
	logger     *zap.Logger
}

// NewRouter builds the API routes. Admin routes require adminToken as a
// bearer token and are refused when it is empty.
func NewRouter(svc ReportService, hm *health.Manager, adminToken string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hm == nil {
		hm = health.NewManager(logger)
	}
	h := &Handler{svc: svc, health: hm, adminToken: adminToken, logger: logger}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(requestLogger(logger))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Get("/readyz", h.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Route("/api/v1", func(r chi.Router) {
		r.Route("/clients/{clientID}", func(r chi.Router) {
			r.Post("/reports", h.handleGenerate)
			r.Get("/reports/latest", h.handleLatest)
			r.Post("/schedules", h.handleCreateSchedule)
			r.Get("/schedules", h.handleListSchedules)
		})
		r.Get("/reports/{reportID}/debug", h.handleDebug)
		r.Delete("/schedules/{scheduleID}", h.handleDeleteSchedule)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/reports/{reportID}/fail", h.handleFail)
			r.Post("/admin/reports/fail-stuck", h.handleFailStuck)
		})
	})
	return mux
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	rep := h.health.Check(r.Context())
	status := http.StatusOK
	if !rep.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			writeError(w, http.StatusForbidden, "admin operations are disabled")
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+h.adminToken {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
				return
			}
			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrNotFound), errors.Is(err, schedules.ErrScheduleNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrTerminalStatus):
		return http.StatusConflict
	case errors.Is(err, report.ErrSchedulesDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, report.ErrStartFailed):
		return http.StatusBadGateway
	case errors.Is(err, schedules.ErrScheduleLimitReached):
		return http.StatusTooManyRequests
	case report.IsInvalidInput(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, sanitizeErr(err.Error()))
}

// writeJSON writes a JSON response with status and content-type.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sanitizeErr trims error messages for client output (UTF-8 safe).
func sanitizeErr(s string) string {
	runes := []rune(s)
	if len(runes) > 200 {
		return string(runes[:200])
	}
	return s
}

// Serve starts an HTTP server for handler on port in the background.
func Serve(port int, handler http.Handler, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("Starting report API server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Report API server failed", zap.Error(err))
		}
	}()
	return srv
}
