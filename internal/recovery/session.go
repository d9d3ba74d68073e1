package recovery

import (
	"time"

	"github.com/trackdeck/realtime/internal/sysmon"
)

// Status is the lifecycle status of one recovery session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether a session in this status is finished.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// SessionMetrics aggregates per-phase durations and peak resource usage
// sampled while the session ran.
type SessionMetrics struct {
	StepDurations    map[string]time.Duration
	RollbackDuration time.Duration
	PeakHeapBytes    uint64
	PeakGoroutines   int
}

func (m *SessionMetrics) recordPeak(snap sysmon.Snapshot) {
	if snap.HeapBytes > m.PeakHeapBytes {
		m.PeakHeapBytes = snap.HeapBytes
	}
	if snap.Goroutines > m.PeakGoroutines {
		m.PeakGoroutines = snap.Goroutines
	}
}

// Session is one execution instance of a plan. The coordinator mutates it
// under its own lock; callers only ever see snapshots.
type Session struct {
	ID             string
	PlanID         string
	Status         Status
	StartedAt      time.Time
	EndedAt        time.Time
	StepIndex      int
	CompletedSteps []string
	FailedSteps    []string
	Errors         []string
	Metrics        SessionMetrics
}

// snapshot returns a deep copy safe to hand outside the coordinator.
func (s *Session) snapshot() Session {
	out := *s
	out.CompletedSteps = append([]string(nil), s.CompletedSteps...)
	out.FailedSteps = append([]string(nil), s.FailedSteps...)
	out.Errors = append([]string(nil), s.Errors...)
	out.Metrics.StepDurations = make(map[string]time.Duration, len(s.Metrics.StepDurations))
	for k, v := range s.Metrics.StepDurations {
		out.Metrics.StepDurations[k] = v
	}
	return out
}
