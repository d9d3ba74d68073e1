package recovery

import (
	"fmt"
	"sync"

	"github.com/trackdeck/realtime/internal/core/domain"
)

// Registry is the static catalog of recovery plans. Lookup prefers an exact
// (type, severity) match, falls back to a type-only match, and finally to
// the designated catastrophic plan when severity is critical. A nil result
// means "no plan" and callers must treat it as a no-op.
type Registry struct {
	mu           sync.RWMutex
	plans        map[string]*Plan
	order        []string // registration order, keeps lookups deterministic
	catastrophic string
}

// NewRegistry creates an empty plan registry.
func NewRegistry() *Registry {
	return &Registry{plans: make(map[string]*Plan)}
}

// Register adds a plan. Plan ids are unique; a plan must have at least one
// step.
func (r *Registry) Register(p *Plan) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("plan must have an id")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan %s has no steps", p.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plans[p.ID]; exists {
		return fmt.Errorf("plan %s already registered", p.ID)
	}
	r.plans[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// SetCatastrophic designates the fallback plan used for critical failures
// that match nothing else.
func (r *Registry) SetCatastrophic(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plans[id]; !exists {
		return fmt.Errorf("plan %s not registered", id)
	}
	r.catastrophic = id
	return nil
}

// Lookup selects the plan for a classified failure, or nil when none match.
func (r *Registry) Lookup(t domain.FailureType, sev domain.Severity) *Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		p := r.plans[id]
		if p.ErrorType == t && p.Severity == sev {
			return p
		}
	}
	for _, id := range r.order {
		p := r.plans[id]
		if p.ErrorType == t {
			return p
		}
	}
	if sev == domain.SeverityCritical && r.catastrophic != "" {
		return r.plans[r.catastrophic]
	}
	return nil
}

// Plan returns a registered plan by id.
func (r *Registry) Plan(id string) (*Plan, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[id]
	return p, ok
}

// Plans returns all registered plans in registration order.
func (r *Registry) Plans() []*Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Plan, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plans[id])
	}
	return out
}
