package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCollectorTracksOutcomesAndState(t *testing.T) {
	c := NewMetricsCollector()
	settings := Settings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 1, SuccessThreshold: 1}

	var seen []State
	cfg := settings.ToConfig()
	cfg.OnStateChange = func(_ string, _, to State) { seen = append(seen, to) }
	cb := NewCircuitBreaker("collector-test", cfg, zaptest.NewLogger(t))
	c.RegisterCircuitBreaker("collector-test", "upstream", cb)
	c.RegisterCircuitBreaker("alpha", "upstream", NewCircuitBreaker("alpha", settings.ToConfig(), zaptest.NewLogger(t)))

	okBefore := testutil.ToFloat64(breakerCalls.WithLabelValues("collector-test", "upstream", "ok"))
	failedBefore := testutil.ToFloat64(breakerCalls.WithLabelValues("collector-test", "upstream", "failed"))
	rejectedBefore := testutil.ToFloat64(breakerCalls.WithLabelValues("collector-test", "upstream", "rejected"))

	ctx := context.Background()
	c.RecordRequest("collector-test", "upstream", cb.Execute(ctx, func() error { return nil }))
	c.RecordRequest("collector-test", "upstream", cb.Execute(ctx, func() error { return errors.New("boom") }))
	err := cb.Execute(ctx, func() error { return nil })
	require.ErrorIs(t, err, ErrCircuitBreakerOpen)
	c.RecordRequest("collector-test", "upstream", err)

	assert.InDelta(t, okBefore+1, testutil.ToFloat64(breakerCalls.WithLabelValues("collector-test", "upstream", "ok")), 1e-9)
	assert.InDelta(t, failedBefore+1, testutil.ToFloat64(breakerCalls.WithLabelValues("collector-test", "upstream", "failed")), 1e-9)
	assert.InDelta(t, rejectedBefore+1, testutil.ToFloat64(breakerCalls.WithLabelValues("collector-test", "upstream", "rejected")), 1e-9)
	assert.Equal(t, float64(StateOpen), testutil.ToFloat64(breakerState.WithLabelValues("collector-test", "upstream")))
	assert.Equal(t, []State{StateOpen}, seen, "existing state callback still runs")

	assert.Equal(t, []BreakerStatus{
		{Breaker: "alpha", Remote: "upstream", State: "closed"},
		{Breaker: "collector-test", Remote: "upstream", State: "open"},
	}, c.Snapshot())
}
