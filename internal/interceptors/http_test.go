package interceptors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func newServer(t *testing.T, seen *http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOutsideActivityPassesThrough(t *testing.T) {
	var seen http.Header
	srv := newServer(t, &seen)
	client := &http.Client{Transport: NewWorkflowHTTPRoundTripper(nil)}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, seen.Get(HeaderWorkflowID))
	assert.Empty(t, seen.Get(HeaderRunID))
}

func TestInsideActivitySetsHeaders(t *testing.T) {
	var seen http.Header
	srv := newServer(t, &seen)
	client := &http.Client{Transport: NewWorkflowHTTPRoundTripper(nil)}

	fetch := func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		if err != nil {
			return "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		resp.Body.Close()
		return activity.GetInfo(ctx).WorkflowExecution.ID, nil
	}

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivityWithOptions(fetch, activity.RegisterOptions{Name: "FetchPaid"})
	val, err := env.ExecuteActivity("FetchPaid")
	require.NoError(t, err)
	var workflowID string
	require.NoError(t, val.Get(&workflowID))

	assert.Equal(t, workflowID, seen.Get(HeaderWorkflowID))
	assert.Equal(t, "FetchPaid", seen.Get(HeaderActivityType))
}
