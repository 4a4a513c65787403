package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager runs registered checkers concurrently, each under its own
// timeout.
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	logger   *zap.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{checkers: make(map[string]Checker), logger: logger}
}

// RegisterChecker adds a checker. Names must be unique.
func (m *Manager) RegisterChecker(c Checker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.checkers[c.Name()]; exists {
		return fmt.Errorf("health checker %q already registered", c.Name())
	}
	m.checkers[c.Name()] = c
	m.logger.Debug("Health checker registered", zap.String("name", c.Name()), zap.Bool("critical", c.IsCritical()))
	return nil
}

// Check runs every checker and folds the results.
func (m *Manager) Check(ctx context.Context) Report {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
	)
	components := make(map[string]CheckResult, len(checkers))
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			res := runSingleCheck(ctx, c)
			rmu.Lock()
			components[c.Name()] = res
			rmu.Unlock()
		}(c)
	}
	wg.Wait()

	report := calculateOverall(components)
	report.Components = components
	report.Timestamp = time.Now().UTC()
	if !report.Ready {
		m.logger.Warn("Service not ready", zap.String("reason", report.Message))
	}
	return report
}

func runSingleCheck(ctx context.Context, c Checker) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()
	start := time.Now()
	res := c.Check(checkCtx)
	res.Component = c.Name()
	res.Critical = c.IsCritical()
	res.LatencyMs = time.Since(start).Milliseconds()
	return res
}

func calculateOverall(components map[string]CheckResult) Report {
	if len(components) == 0 {
		return Report{Status: StatusUnknown, Message: "No health checks registered", Ready: true}
	}
	criticalFailures, otherFailures, degraded := 0, 0, 0
	for _, r := range components {
		switch {
		case r.Status == StatusUnhealthy && r.Critical:
			criticalFailures++
		case r.Status == StatusUnhealthy:
			otherFailures++
		case r.Status == StatusDegraded:
			degraded++
		}
	}
	switch {
	case criticalFailures > 0:
		return Report{Status: StatusUnhealthy, Message: fmt.Sprintf("%d critical component(s) failing", criticalFailures)}
	case otherFailures > 0:
		return Report{Status: StatusDegraded, Message: fmt.Sprintf("%d non-critical component(s) failing", otherFailures), Ready: true}
	case degraded > 0:
		return Report{Status: StatusDegraded, Message: fmt.Sprintf("%d component(s) degraded", degraded), Ready: true}
	default:
		return Report{Status: StatusHealthy, Message: fmt.Sprintf("All %d components healthy", len(components)), Ready: true}
	}
}
