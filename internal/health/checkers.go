package health

import (
	"context"
	"strings"
	"time"

	"github.com/Kocoro-lab/interplay/internal/circuitbreaker"
)

// slowThreshold marks a responsive dependency as degraded.
const slowThreshold = 250 * time.Millisecond

// PingFunc probes one dependency.
type PingFunc func(ctx context.Context) error

// PingChecker adapts a ping function into a Checker.
type PingChecker struct {
	name     string
	critical bool
	timeout  time.Duration
	ping     PingFunc
	// open reports a tripped circuit breaker in front of the dependency.
	open func() bool
}

// NewPingChecker creates a checker named name around ping.
func NewPingChecker(name string, critical bool, ping PingFunc) *PingChecker {
	return &PingChecker{name: name, critical: critical, timeout: 5 * time.Second, ping: ping}
}

// WithBreaker reports the dependency unhealthy while open returns true,
// without pinging it.
func (p *PingChecker) WithBreaker(open func() bool) *PingChecker {
	p.open = open
	return p
}

// WithTimeout overrides the default 5s timeout.
func (p *PingChecker) WithTimeout(d time.Duration) *PingChecker {
	p.timeout = d
	return p
}

func (p *PingChecker) Name() string           { return p.name }
func (p *PingChecker) IsCritical() bool       { return p.critical }
func (p *PingChecker) Timeout() time.Duration { return p.timeout }

func (p *PingChecker) Check(ctx context.Context) CheckResult {
	if p.open != nil && p.open() {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   "circuit breaker open",
			Message: p.name + " circuit breaker is open",
		}
	}
	start := time.Now()
	if err := p.ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: p.name + " ping failed"}
	}
	if time.Since(start) > slowThreshold {
		return CheckResult{Status: StatusDegraded, Message: p.name + " responding with high latency"}
	}
	return CheckResult{Status: StatusHealthy, Message: p.name + " healthy"}
}

// BreakerChecker reports every circuit breaker the process registered. It
// is degraded while any breaker is not closed and never affects readiness.
type BreakerChecker struct {
	snapshot func() []circuitbreaker.BreakerStatus
}

// NewBreakerChecker reads breaker states from snapshot.
func NewBreakerChecker(snapshot func() []circuitbreaker.BreakerStatus) *BreakerChecker {
	return &BreakerChecker{snapshot: snapshot}
}

func (b *BreakerChecker) Name() string           { return "circuit_breakers" }
func (b *BreakerChecker) IsCritical() bool       { return false }
func (b *BreakerChecker) Timeout() time.Duration { return time.Second }

func (b *BreakerChecker) Check(context.Context) CheckResult {
	details := map[string]interface{}{}
	var tripped []string
	for _, s := range b.snapshot() {
		key := s.Breaker + "/" + s.Remote
		details[key] = s.State
		if s.State != "closed" {
			tripped = append(tripped, key)
		}
	}
	if len(tripped) > 0 {
		return CheckResult{Status: StatusDegraded, Message: "breakers not closed: " + strings.Join(tripped, ", "), Details: details}
	}
	return CheckResult{Status: StatusHealthy, Message: "all breakers closed", Details: details}
}
