package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--server", srv.URL, "--admin-token", "secret"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestGenerateCommand(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/clients/acme/reports", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"report_id":"r-1","metadata":{"workflow_id":"interplay-r-1","business_type":"ecommerce","skill_version":"1.0.0"}}`))
	}))
	defer srv.Close()

	out, err := execute(t, srv, "generate", "acme", "--days", "14", "--business-type", "ecommerce")
	require.NoError(t, err)
	assert.Contains(t, out, "Report r-1 accepted")
	assert.Contains(t, out, "interplay-r-1")
	assert.EqualValues(t, 14, got["days"])
	assert.Equal(t, "ecommerce", got["business_type"])
}

func TestLatestCommandPrintsRecommendations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/clients/acme/reports/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"report_id":"r-2","business_type":"ecommerce","status":"completed",
			"date_start":"2026-04-10","date_end":"2026-05-09",
			"executive_summary":{"headline":"Shift spend to organic winners","highlights":["3 conflicts resolved"]},
			"recommendations":[{"title":"Pause paid bids on brand terms","channel":"sem","impact":"high","score":7.5}]
		}`))
	}))
	defer srv.Close()

	out, err := execute(t, srv, "latest", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "Shift spend to organic winners")
	assert.Contains(t, out, "Pause paid bids on brand terms")
	assert.Contains(t, out, "7.50")
}

func TestFailStuckSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/admin/reports/fail-stuck", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"failed":["a","b"]}`))
	}))
	defer srv.Close()

	out, err := execute(t, srv, "fail-stuck", "--older-than", "3h")
	require.NoError(t, err)
	assert.Contains(t, out, "2 report(s) marked failed")
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}))
	defer srv.Close()

	_, err := execute(t, srv, "debug", "missing")
	require.Error(t, err)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "not found", apiErr.Message)
}

func TestSkillsListUsesEmbeddedBundles(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	out, err := execute(t, srv, "skills", "list", "--dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "ecommerce")
	assert.Contains(t, out, "BUSINESS TYPE")
}
