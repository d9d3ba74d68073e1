package control

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/trackdeck/realtime/internal/conn"
	"github.com/trackdeck/realtime/internal/core/domain"
	"github.com/trackdeck/realtime/internal/health"
	"github.com/trackdeck/realtime/internal/pipeline"
	"github.com/trackdeck/realtime/internal/recovery"
)

// registerPlans installs the builtin recovery catalog against the real
// collaborators. Plans are immutable after this point.
func registerPlans(
	reg *recovery.Registry,
	mgr *conn.Manager,
	buf *pipeline.SyncBuffer,
	checker health.Checker,
) error {
	plans := []*recovery.Plan{
		connectionRecoveryPlan(mgr, buf),
		pipelineRecoveryPlan(buf),
		performanceRecoveryPlan(buf),
		systemRecoveryPlan(mgr, buf, checker),
	}
	for _, p := range plans {
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return reg.SetCatastrophic("system_recovery")
}

func connectionRecoveryPlan(mgr *conn.Manager, buf *pipeline.SyncBuffer) *recovery.Plan {
	return &recovery.Plan{
		ID:            "connection_recovery",
		ErrorType:     domain.FailureTypeConnection,
		Severity:      domain.SeverityHigh,
		EstimatedTime: 15 * time.Second,
		SuccessRate:   0.9,
		Steps: []recovery.Step{
			{
				ID:      "pause_pipeline",
				Name:    "Pause frame pipeline",
				Execute: func(ctx context.Context) error { return buf.Stop() },
				Validate: func(ctx context.Context) error {
					if buf.Statistics().Running {
						return fmt.Errorf("pipeline still running")
					}
					return nil
				},
				Timeout: 5 * time.Second,
			},
			{
				ID:       "reestablish_connection",
				Name:     "Re-establish tracking connection",
				Execute:  mgr.Redial,
				Validate: validateConnected(mgr),
				Rollback: func(ctx context.Context) error { return mgr.Disconnect() },
				Timeout:  15 * time.Second,
			},
			{
				ID:   "resume_pipeline",
				Name: "Reset and resume frame pipeline",
				Execute: func(ctx context.Context) error {
					if err := buf.Reset(); err != nil {
						return err
					}
					return buf.Start()
				},
				Validate: validateRunning(buf),
				Timeout:  5 * time.Second,
			},
		},
		Rollback: []recovery.Step{
			{
				ID:      "restore_pipeline",
				Name:    "Restart pipeline after failed reconnect",
				Execute: func(ctx context.Context) error { return buf.Start() },
				Timeout: 5 * time.Second,
			},
		},
	}
}

func pipelineRecoveryPlan(buf *pipeline.SyncBuffer) *recovery.Plan {
	return &recovery.Plan{
		ID:            "pipeline_recovery",
		ErrorType:     domain.FailureTypePipeline,
		Severity:      domain.SeverityMedium,
		EstimatedTime: 10 * time.Second,
		SuccessRate:   0.95,
		Steps: []recovery.Step{
			{
				ID:      "stop_pipeline",
				Name:    "Stop frame pipeline",
				Execute: func(ctx context.Context) error { return buf.Stop() },
				Timeout: 5 * time.Second,
			},
			{
				ID:      "reset_buffers",
				Name:    "Flush sync buffers",
				Execute: func(ctx context.Context) error { return buf.Reset() },
				Timeout: 5 * time.Second,
			},
			{
				ID:       "restart_pipeline",
				Name:     "Restart frame pipeline",
				Execute:  func(ctx context.Context) error { return buf.Start() },
				Validate: validateRunning(buf),
				Timeout:  5 * time.Second,
			},
		},
		Rollback: []recovery.Step{
			{
				ID:      "start_pipeline",
				Name:    "Leave pipeline running",
				Execute: func(ctx context.Context) error { return buf.Start() },
				Timeout: 5 * time.Second,
			},
		},
	}
}

func performanceRecoveryPlan(buf *pipeline.SyncBuffer) *recovery.Plan {
	reducedBuffer := 10
	return &recovery.Plan{
		ID:            "performance_recovery",
		ErrorType:     domain.FailureTypePerformance,
		Severity:      domain.SeverityMedium,
		EstimatedTime: 5 * time.Second,
		SuccessRate:   0.8,
		Steps: []recovery.Step{
			{
				ID:   "reduce_buffering",
				Name: "Shrink per-camera buffers",
				Execute: func(ctx context.Context) error {
					return buf.UpdateConfig(pipeline.ConfigPatch{BufferSize: &reducedBuffer})
				},
				Timeout: 5 * time.Second,
			},
			{
				ID:   "release_memory",
				Name: "Drop buffered frames and collect garbage",
				Execute: func(ctx context.Context) error {
					if err := buf.Reset(); err != nil {
						return err
					}
					runtime.GC()
					return nil
				},
				Timeout: 10 * time.Second,
			},
		},
	}
}

func systemRecoveryPlan(mgr *conn.Manager, buf *pipeline.SyncBuffer, checker health.Checker) *recovery.Plan {
	return &recovery.Plan{
		ID:            "system_recovery",
		ErrorType:     domain.FailureTypeSystem,
		Severity:      domain.SeverityCritical,
		EstimatedTime: 30 * time.Second,
		SuccessRate:   0.7,
		Steps: []recovery.Step{
			{
				ID:   "halt_everything",
				Name: "Stop pipeline and drop connection",
				Execute: func(ctx context.Context) error {
					if err := buf.Stop(); err != nil {
						return err
					}
					return mgr.Disconnect()
				},
				Timeout: 10 * time.Second,
			},
			{
				ID:      "reset_pipeline",
				Name:    "Flush all sync buffers",
				Execute: func(ctx context.Context) error { return buf.Reset() },
				Timeout: 5 * time.Second,
			},
			{
				ID:       "reconnect",
				Name:     "Re-establish tracking connection",
				Execute:  mgr.Connect,
				Validate: validateConnected(mgr),
				Timeout:  20 * time.Second,
			},
			{
				ID:       "restart_pipeline",
				Name:     "Restart frame pipeline",
				Execute:  func(ctx context.Context) error { return buf.Start() },
				Validate: validateRunning(buf),
				Timeout:  5 * time.Second,
			},
			{
				ID:   "verify_health",
				Name: "Confirm system health",
				Execute: func(ctx context.Context) error {
					report := checker.CheckNow(ctx)
					if report.Overall == health.StatusCritical {
						return fmt.Errorf("system still critical after recovery")
					}
					return nil
				},
				Timeout: 10 * time.Second,
			},
		},
		Rollback: []recovery.Step{
			{
				ID:      "restore_pipeline",
				Name:    "Best-effort pipeline restart",
				Execute: func(ctx context.Context) error { return buf.Start() },
				Timeout: 5 * time.Second,
			},
		},
	}
}

func validateConnected(mgr *conn.Manager) recovery.StepFunc {
	return func(ctx context.Context) error {
		if state := mgr.State(); state != conn.StateConnected {
			return fmt.Errorf("connection state is %s, want connected", state)
		}
		return nil
	}
}

func validateRunning(buf *pipeline.SyncBuffer) recovery.StepFunc {
	return func(ctx context.Context) error {
		if !buf.Statistics().Running {
			return fmt.Errorf("pipeline not running")
		}
		return nil
	}
}
