package recovery

import (
	"context"
	"testing"

	"github.com/trackdeck/realtime/internal/core/domain"
)

func noopStep(id string) Step {
	return Step{ID: id, Execute: func(ctx context.Context) error { return nil }}
}

func planFor(id string, t domain.FailureType, sev domain.Severity) *Plan {
	return &Plan{ID: id, ErrorType: t, Severity: sev, Steps: []Step{noopStep(id + "_step")}}
}

func TestRegistry_RejectsInvalidPlans(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(nil); err == nil {
		t.Error("expected error for nil plan")
	}
	if err := r.Register(&Plan{ID: "empty"}); err == nil {
		t.Error("expected error for plan without steps")
	}
	if err := r.Register(planFor("dup", domain.FailureTypeConnection, domain.SeverityHigh)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(planFor("dup", domain.FailureTypePipeline, domain.SeverityLow)); err == nil {
		t.Error("expected error for duplicate plan id")
	}
	if err := r.SetCatastrophic("missing"); err == nil {
		t.Error("expected error designating an unregistered plan")
	}
}

func TestRegistry_LookupPrefersExactMatch(t *testing.T) {
	r := NewRegistry()
	typeOnly := planFor("conn_generic", domain.FailureTypeConnection, domain.SeverityLow)
	exact := planFor("conn_high", domain.FailureTypeConnection, domain.SeverityHigh)
	if err := r.Register(typeOnly); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(exact); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got := r.Lookup(domain.FailureTypeConnection, domain.SeverityHigh)
	if got == nil || got.ID != "conn_high" {
		t.Errorf("expected exact match conn_high, got %+v", got)
	}

	// No exact severity match: first registered plan of the type wins
	got = r.Lookup(domain.FailureTypeConnection, domain.SeverityMedium)
	if got == nil || got.ID != "conn_generic" {
		t.Errorf("expected type-only fallback conn_generic, got %+v", got)
	}
}

func TestRegistry_CatastrophicFallback(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(planFor("total_reset", domain.FailureTypeSystem, domain.SeverityCritical)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.SetCatastrophic("total_reset"); err != nil {
		t.Fatalf("SetCatastrophic failed: %v", err)
	}

	got := r.Lookup(domain.FailureTypePerformance, domain.SeverityCritical)
	if got == nil || got.ID != "total_reset" {
		t.Errorf("expected catastrophic fallback for critical failure, got %+v", got)
	}

	if got := r.Lookup(domain.FailureTypePerformance, domain.SeverityLow); got != nil {
		t.Errorf("expected nil for non-critical unmatched failure, got %s", got.ID)
	}
}

func TestRegistry_PlansInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		if err := r.Register(planFor(id, domain.FailureTypePipeline, domain.SeverityLow)); err != nil {
			t.Fatalf("Register %s failed: %v", id, err)
		}
	}

	plans := r.Plans()
	if len(plans) != len(ids) {
		t.Fatalf("expected %d plans, got %d", len(ids), len(plans))
	}
	for i, id := range ids {
		if plans[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, plans[i].ID)
		}
	}

	if _, ok := r.Plan("a"); !ok {
		t.Error("expected plan a to resolve by id")
	}
	if _, ok := r.Plan("z"); ok {
		t.Error("expected plan z to be missing")
	}
}
