package control

import (
	"context"
	"testing"
	"time"

	"github.com/trackdeck/realtime/internal/conn"
	"github.com/trackdeck/realtime/internal/core/domain"
	"github.com/trackdeck/realtime/internal/health"
	"github.com/trackdeck/realtime/internal/pipeline"
	"github.com/trackdeck/realtime/internal/recovery"
)

// ====== Mocks ======

type stubChecker struct {
	report health.Report
}

func (c *stubChecker) CheckNow(ctx context.Context) health.Report { return c.report }
func (c *stubChecker) Start(ctx context.Context)                  {}
func (c *stubChecker) Stop()                                      {}
func (c *stubChecker) IsHealthy() bool                            { return c.report.Overall == health.StatusHealthy }

func newTestCatalog(t *testing.T) (*recovery.Registry, *pipeline.SyncBuffer) {
	t.Helper()
	reg := recovery.NewRegistry()
	buf := pipeline.NewSyncBuffer(pipeline.Config{BufferSize: 30})
	mgr := conn.NewManager(conn.Config{Endpoint: "ws://localhost:0/ws"}, nil, nil)
	checker := &stubChecker{report: health.Report{Overall: health.StatusHealthy}}

	if err := registerPlans(reg, mgr, buf, checker); err != nil {
		t.Fatalf("registerPlans failed: %v", err)
	}
	return reg, buf
}

func TestRegisterPlans_LookupRouting(t *testing.T) {
	reg, _ := newTestCatalog(t)

	cases := []struct {
		failure  domain.FailureType
		severity domain.Severity
		wantPlan string
	}{
		{domain.FailureTypeConnection, domain.SeverityHigh, "connection_recovery"},
		{domain.FailureTypeConnection, domain.SeverityLow, "connection_recovery"}, // type fallback
		{domain.FailureTypePipeline, domain.SeverityMedium, "pipeline_recovery"},
		{domain.FailureTypePerformance, domain.SeverityMedium, "performance_recovery"},
		{domain.FailureTypeSystem, domain.SeverityCritical, "system_recovery"},
		// Unclassifiable critical failures fall through to the catastrophic plan
		{domain.FailureType("storage"), domain.SeverityCritical, "system_recovery"},
	}
	for _, tc := range cases {
		plan := reg.Lookup(tc.failure, tc.severity)
		if plan == nil {
			t.Errorf("(%s, %s): expected %s, got no plan", tc.failure, tc.severity, tc.wantPlan)
			continue
		}
		if plan.ID != tc.wantPlan {
			t.Errorf("(%s, %s): expected %s, got %s", tc.failure, tc.severity, tc.wantPlan, plan.ID)
		}
	}

	if plan := reg.Lookup(domain.FailureType("storage"), domain.SeverityLow); plan != nil {
		t.Errorf("expected no plan for non-critical unknown failure, got %s", plan.ID)
	}
}

func TestPipelineRecoveryPlan_RestoresPipeline(t *testing.T) {
	reg, buf := newTestCatalog(t)
	plan, ok := reg.Plan("pipeline_recovery")
	if !ok {
		t.Fatal("pipeline_recovery not registered")
	}

	buf.Start()
	buf.Offer(pipeline.Frame{Camera: "cam1", CapturedAt: time.Now()})

	c := recovery.NewCoordinator(recovery.Config{}, reg, nil)
	done := make(chan recovery.Session, 1)
	c.OnComplete(func(s recovery.Session) { done <- s })

	if _, err := c.StartSession(plan); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	select {
	case s := <-done:
		if s.Status != recovery.StatusCompleted {
			t.Fatalf("expected completed, got %s (errors %v)", s.Status, s.Errors)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline recovery never finished")
	}

	stats := buf.Statistics()
	if !stats.Running {
		t.Error("pipeline not running after recovery")
	}
	if stats.FramesBuffered != 0 {
		t.Errorf("expected flushed buffers, got %d frames", stats.FramesBuffered)
	}
}

func TestPerformanceRecoveryPlan_ShrinksBuffers(t *testing.T) {
	reg, buf := newTestCatalog(t)
	plan, ok := reg.Plan("performance_recovery")
	if !ok {
		t.Fatal("performance_recovery not registered")
	}
	buf.Start()

	c := recovery.NewCoordinator(recovery.Config{}, reg, nil)
	done := make(chan recovery.Session, 1)
	c.OnComplete(func(s recovery.Session) { done <- s })

	if _, err := c.StartSession(plan); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	select {
	case s := <-done:
		if s.Status != recovery.StatusCompleted {
			t.Fatalf("expected completed, got %s (errors %v)", s.Status, s.Errors)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("performance recovery never finished")
	}

	// Buffer capacity was reduced to 10 frames per camera
	accepted := 0
	for i := 0; i < 15; i++ {
		if buf.Offer(pipeline.Frame{Camera: "cam1", Sequence: uint64(i), CapturedAt: time.Now()}) {
			accepted++
		}
	}
	if accepted != 10 {
		t.Errorf("expected 10 frames accepted after shrink, got %d", accepted)
	}
}
