package circuitbreaker

import (
	"errors"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "interplay_breaker_state",
			Help: "Breaker state per collaborator (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker", "remote"},
	)

	breakerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interplay_breaker_calls_total",
			Help: "Calls through a breaker by outcome (ok, failed, rejected)",
		},
		[]string{"breaker", "remote", "outcome"},
	)

	breakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interplay_breaker_transitions_total",
			Help: "Breaker state transitions by target state",
		},
		[]string{"breaker", "remote", "to"},
	)
)

// BreakerStatus is one registered breaker as seen by the health endpoint.
type BreakerStatus struct {
	Breaker string `json:"breaker"`
	Remote  string `json:"remote"`
	State   string `json:"state"`
}

// Collector keeps the breakers a process created so their state can be
// exported and reported.
type Collector struct {
	mu       sync.RWMutex
	breakers map[[2]string]*CircuitBreaker
}

// NewMetricsCollector returns an empty collector.
func NewMetricsCollector() *Collector {
	return &Collector{breakers: map[[2]string]*CircuitBreaker{}}
}

// GlobalMetricsCollector holds every breaker built by the wrappers.
var GlobalMetricsCollector = NewMetricsCollector()

// RegisterCircuitBreaker tracks cb under breaker/remote and mirrors its
// transitions into the state gauge. A second registration under the same
// labels replaces the first.
func (c *Collector) RegisterCircuitBreaker(breaker, remote string, cb *CircuitBreaker) {
	c.mu.Lock()
	c.breakers[[2]string{breaker, remote}] = cb
	c.mu.Unlock()

	breakerState.WithLabelValues(breaker, remote).Set(float64(cb.State()))
	next := cb.config.OnStateChange
	cb.config.OnStateChange = func(name string, from, to State) {
		if next != nil {
			next(name, from, to)
		}
		breakerState.WithLabelValues(breaker, remote).Set(float64(to))
		breakerTrips.WithLabelValues(breaker, remote, to.String()).Inc()
	}
}

// RecordRequest counts one call. Calls refused by an open or saturated
// breaker are "rejected" rather than "failed".
func (c *Collector) RecordRequest(breaker, remote string, err error) {
	breakerCalls.WithLabelValues(breaker, remote, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCircuitBreakerOpen), errors.Is(err, ErrTooManyRequests):
		return "rejected"
	default:
		return "failed"
	}
}

// Snapshot lists the registered breakers sorted by breaker then remote.
func (c *Collector) Snapshot() []BreakerStatus {
	c.mu.RLock()
	out := make([]BreakerStatus, 0, len(c.breakers))
	for k, cb := range c.breakers {
		out = append(out, BreakerStatus{Breaker: k[0], Remote: k[1], State: cb.State().String()})
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Breaker != out[j].Breaker {
			return out[i].Breaker < out[j].Breaker
		}
		return out[i].Remote < out[j].Remote
	})
	return out
}
