package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/trackdeck/realtime/internal/metrics"
)

// ErrStepTimeout marks a step whose execute or validate phase outlived its
// deadline. Treated identically to an execution failure.
var ErrStepTimeout = errors.New("step timed out")

// Executor runs one step at a time: execute raced against the step timeout,
// then validate raced against half of it. Both races are cancellable through
// the caller's context so a cancelled session releases its timers.
type Executor struct {
	log *slog.Logger
}

// NewExecutor creates a step executor.
func NewExecutor(log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{log: log}
}

// RunStep executes a step and, on success, its validation. Any failure,
// timeout included, is returned as an error.
func (e *Executor) RunStep(ctx context.Context, planID string, step Step) error {
	if step.Execute == nil {
		return fmt.Errorf("step %s has no execute action", step.ID)
	}

	start := time.Now()
	err := runBounded(ctx, step.Timeout, step.Execute)
	metrics.RecoveryStepDuration.WithLabelValues(planID, step.ID).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("execute %s: %w", step.ID, err)
	}

	if step.Validate != nil {
		if err := runBounded(ctx, step.Timeout/2, step.Validate); err != nil {
			return fmt.Errorf("validate %s: %w", step.ID, err)
		}
	}
	return nil
}

// runBounded races fn against the timeout and the caller's cancellation.
// The deadline timer is released on every exit path.
func runBounded(ctx context.Context, timeout time.Duration, fn StepFunc) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrStepTimeout
		}
		return ctx.Err()
	}
}
