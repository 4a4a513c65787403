package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Kocoro-lab/interplay/internal/db"
	"github.com/Kocoro-lab/interplay/internal/formatting"
	"github.com/Kocoro-lab/interplay/internal/report"
	"github.com/Kocoro-lab/interplay/internal/schedules"
)

type generateRequest struct {
	Days         int    `json:"days"`
	Trigger      string `json:"trigger"`
	BusinessType string `json:"business_type"`
}

type failRequest struct {
	Reason string `json:"reason"`
}

type failStuckRequest struct {
	OlderThan string `json:"older_than"`
	Reason    string `json:"reason"`
}

type scheduleRequest struct {
	BusinessType   string `json:"business_type"`
	CronExpression string `json:"cron_expression"`
	Timezone       string `json:"timezone"`
	Days           int    `json:"days"`
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	acc, err := h.svc.GenerateReport(r.Context(), chi.URLParam(r, "clientID"), report.Options{
		Days:         req.Days,
		Trigger:      db.Trigger(req.Trigger),
		BusinessType: req.BusinessType,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acc)
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.GetLatestReport(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(formatting.Markdown(sum)))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) handleDebug(w http.ResponseWriter, r *http.Request) {
	dbg, err := h.svc.GetReportDebug(r.Context(), chi.URLParam(r, "reportID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dbg)
}

func (h *Handler) handleFail(w http.ResponseWriter, r *http.Request) {
	var req failRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.svc.MarkStuckFailed(r.Context(), chi.URLParam(r, "reportID"), req.Reason); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFailStuck(w http.ResponseWriter, r *http.Request) {
	req := failStuckRequest{OlderThan: "2h"}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	olderThan, err := time.ParseDuration(req.OlderThan)
	if err != nil || olderThan <= 0 {
		writeError(w, http.StatusBadRequest, "older_than must be a positive duration")
		return
	}
	ids, err := h.svc.FailStuckRuns(r.Context(), olderThan, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"failed": ids})
}

func (h *Handler) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s, err := h.svc.CreateSchedule(r.Context(), schedules.CreateInput{
		ClientID:       chi.URLParam(r, "clientID"),
		BusinessType:   req.BusinessType,
		CronExpression: req.CronExpression,
		Timezone:       req.Timezone,
		Days:           req.Days,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListSchedules(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*schedules.Schedule{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schedules": list})
}

func (h *Handler) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSchedule(r.Context(), chi.URLParam(r, "scheduleID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
