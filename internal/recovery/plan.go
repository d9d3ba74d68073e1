// Package recovery implements the plan-driven remediation engine: a static
// registry of recovery plans, a step executor with timeout-bounded execute
// and validate phases, and a coordinator that runs sessions under a
// concurrency cap with rollback on failure.
package recovery

import (
	"context"
	"time"

	"github.com/trackdeck/realtime/internal/core/domain"
)

// StepFunc is one remediation action or validation predicate. It must honor
// ctx cancellation; the executor bounds it with a deadline.
type StepFunc func(ctx context.Context) error

// Step is a single remediation action inside a plan. A step belongs to
// exactly one plan and is never shared.
type Step struct {
	ID          string
	Name        string
	Description string

	Execute  StepFunc
	Validate StepFunc // optional, raced against half the step timeout
	Rollback StepFunc // optional step-scoped undo, run on this step's failure

	Timeout time.Duration // zero means the coordinator's default

	// Retries is declared per step but the execution path does not re-invoke
	// a failed step before escalating to rollback. Kept as data only.
	Retries int
}

// Plan is an immutable, registry-owned remediation recipe for one failure
// class. Plans are registered at startup and never mutated afterwards.
type Plan struct {
	ID            string
	ErrorType     domain.FailureType
	Severity      domain.Severity
	Steps         []Step
	Rollback      []Step // plan-level rollback, best-effort on failure/cancel
	EstimatedTime time.Duration
	SuccessRate   float64 // historical, informational
	Prerequisites []string
}
