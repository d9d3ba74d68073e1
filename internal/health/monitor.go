package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Monitor runs registered probes, caches the latest report, and re-checks on
// a fixed interval while started.
type Monitor struct {
	interval time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	probes  map[string]Probe
	last    Report
	stop    chan struct{}
	running bool
}

// NewMonitor creates a health monitor. Interval zero defaults to 15s.
func NewMonitor(interval time.Duration, log *slog.Logger) *Monitor {
	if interval == 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		interval: interval,
		log:      log,
		probes:   make(map[string]Probe),
	}
}

// AddProbe registers a named component probe. Probes added after Start are
// picked up on the next check.
func (m *Monitor) AddProbe(name string, p Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[name] = p
}

// CheckNow runs all probes and returns the aggregated report.
func (m *Monitor) CheckNow(ctx context.Context) Report {
	m.mu.Lock()
	probes := make(map[string]Probe, len(m.probes))
	for name, p := range m.probes {
		probes[name] = p
	}
	m.mu.Unlock()

	report := Report{
		Overall:    StatusHealthy,
		Components: make(map[string]ComponentHealth, len(probes)),
		CheckedAt:  time.Now(),
	}
	for name, probe := range probes {
		ch := probe(ctx)
		report.Components[name] = ch
		switch ch.Status {
		case StatusCritical:
			report.Overall = StatusCritical
		case StatusDegraded:
			if report.Overall != StatusCritical {
				report.Overall = StatusDegraded
			}
		}
	}

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()
	return report
}

// Start begins periodic checking. Calling Start twice is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				report := m.CheckNow(ctx)
				if report.Overall != StatusHealthy {
					m.log.Warn("health check degraded", "overall", report.Overall)
				}
			}
		}
	}()
}

// Stop halts periodic checking.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stop)
	m.stop = nil
}

// IsHealthy reports whether the last check came back fully healthy.
func (m *Monitor) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last.Overall == StatusHealthy
}
