// Package interceptors tags outbound collaborator calls with the Temporal
// execution that made them, so data-source and llm-service logs can be
// joined back to a report run.
package interceptors

import (
	"net/http"

	"go.temporal.io/sdk/activity"
)

// Header names set on outbound requests.
const (
	HeaderWorkflowID   = "X-Workflow-ID"
	HeaderRunID        = "X-Run-ID"
	HeaderActivityType = "X-Activity-Type"
)

// WorkflowHTTPRoundTripper adds workflow metadata to outgoing HTTP requests.
type WorkflowHTTPRoundTripper struct {
	base http.RoundTripper
}

// NewWorkflowHTTPRoundTripper wraps base, or http.DefaultTransport when nil.
func NewWorkflowHTTPRoundTripper(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &WorkflowHTTPRoundTripper{base: base}
}

// RoundTrip implements http.RoundTripper. Requests made outside an activity
// pass through untouched.
func (w *WorkflowHTTPRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if info, ok := activityInfo(req); ok && info.WorkflowExecution.ID != "" {
		req = req.Clone(req.Context())
		req.Header.Set(HeaderWorkflowID, info.WorkflowExecution.ID)
		req.Header.Set(HeaderRunID, info.WorkflowExecution.RunID)
		req.Header.Set(HeaderActivityType, info.ActivityType.Name)
	}
	return w.base.RoundTrip(req)
}

// activityInfo returns the activity info of the request context. GetInfo
// panics outside an activity.
func activityInfo(req *http.Request) (info activity.Info, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return activity.GetInfo(req.Context()), true
}
