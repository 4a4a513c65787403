package circuitbreaker

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHTTPWrapperCountsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	settings := Settings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 2, SuccessThreshold: 1}
	hw := NewHTTPWrapper(srv.Client(), "test-http", "test", settings, zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/missing", nil)
		resp, err := hw.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	assert.Equal(t, StateClosed, hw.State())

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/boom", nil)
		resp, err := hw.Do(req)
		require.NoError(t, err, "5xx responses are returned to the caller")
		resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	}
	assert.Equal(t, StateOpen, hw.State())

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/boom", nil)
	_, err := hw.Do(req)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
}
