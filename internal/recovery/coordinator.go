package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trackdeck/realtime/internal/core/domain"
	"github.com/trackdeck/realtime/internal/metrics"
	"github.com/trackdeck/realtime/internal/sysmon"
)

var (
	// ErrTooManySessions is returned when the concurrency cap is reached.
	ErrTooManySessions = errors.New("too many concurrent recovery sessions")

	// ErrUnknownSession is returned by Cancel for ids not in the active set.
	ErrUnknownSession = errors.New("unknown recovery session")
)

// Config holds coordinator settings.
type Config struct {
	MaxConcurrent      int           `yaml:"max_concurrent"`
	DefaultStepTimeout time.Duration `yaml:"default_step_timeout"`
	HistorySize        int           `yaml:"history_size"`
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 3
	}
	if c.DefaultStepTimeout == 0 {
		c.DefaultStepTimeout = 30 * time.Second
	}
	if c.HistorySize == 0 {
		c.HistorySize = 50
	}
}

// CompletionFunc is notified with a snapshot of every terminal session.
type CompletionFunc func(Session)

// Coordinator classifies incoming failure reports, enforces the concurrency
// cap, runs sessions through the executor, triggers rollback on failure, and
// keeps bounded history plus on-demand statistics.
type Coordinator struct {
	cfg      Config
	registry *Registry
	exec     *Executor
	sampler  sysmon.Sampler
	log      *slog.Logger
	history  *History

	mu     sync.Mutex
	active map[string]*activeSession
	subs   []CompletionFunc
}

type activeSession struct {
	session  *Session
	plan     *Plan
	cancel   context.CancelFunc
	finished bool // history appended and subscribers notified
}

// NewCoordinator creates a coordinator over a plan registry.
func NewCoordinator(cfg Config, registry *Registry, log *slog.Logger) *Coordinator {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		cfg:      cfg,
		registry: registry,
		exec:     NewExecutor(log),
		log:      log,
		history:  NewHistory(cfg.HistorySize),
		active:   make(map[string]*activeSession),
	}
}

// OnComplete registers a subscriber for terminal sessions.
func (c *Coordinator) OnComplete(fn CompletionFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// HandleReport reacts to an externally classified failure. Reports marked
// recovered, reports with no matching plan, and reports arriving at the
// concurrency cap are dropped; nothing is queued.
func (c *Coordinator) HandleReport(report domain.ErrorReport) {
	if report.Recovered {
		return
	}
	plan := c.registry.Lookup(report.Type, report.Severity)
	if plan == nil {
		c.log.Debug("no recovery plan for failure",
			"type", report.Type, "severity", report.Severity)
		return
	}
	if _, err := c.StartSession(plan); err != nil {
		c.log.Warn("recovery report dropped",
			"plan", plan.ID, "type", report.Type, "error", err)
	}
}

// StartSession begins executing a plan. Rejected with ErrTooManySessions
// when the number of in-progress sessions is at the cap; the rejection has
// no side effects on history.
func (c *Coordinator) StartSession(plan *Plan) (Session, error) {
	if plan == nil || len(plan.Steps) == 0 {
		return Session{}, fmt.Errorf("plan has no steps")
	}

	c.mu.Lock()
	if len(c.active) >= c.cfg.MaxConcurrent {
		c.mu.Unlock()
		return Session{}, fmt.Errorf("%w: %d in progress", ErrTooManySessions, c.cfg.MaxConcurrent)
	}

	ctx, cancel := context.WithCancel(context.Background())
	as := &activeSession{
		session: &Session{
			ID:        uuid.New().String(),
			PlanID:    plan.ID,
			Status:    StatusInProgress,
			StartedAt: time.Now(),
			Metrics:   SessionMetrics{StepDurations: make(map[string]time.Duration)},
		},
		plan:   plan,
		cancel: cancel,
	}
	c.active[as.session.ID] = as
	snap := as.session.snapshot()
	c.mu.Unlock()

	metrics.ActiveRecoverySessions.Inc()
	c.log.Info("recovery session started", "plan", plan.ID, "session", snap.ID)

	go c.run(ctx, as)
	return snap, nil
}

// Cancel marks a session cancelled, runs the plan rollback, and removes it
// from the active set. Unknown ids return ErrUnknownSession with no side
// effects.
func (c *Coordinator) Cancel(sessionID string) error {
	c.mu.Lock()
	as, ok := c.active[sessionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	as.session.Status = StatusCancelled
	as.cancel()
	c.mu.Unlock()

	c.log.Info("recovery session cancelled", "plan", as.plan.ID, "session", sessionID)
	c.runRollback(as)
	c.finish(as, StatusCancelled)
	return nil
}

// Session returns a snapshot by id, searching active sessions then history.
func (c *Coordinator) Session(id string) (Session, bool) {
	c.mu.Lock()
	if as, ok := c.active[id]; ok {
		snap := as.session.snapshot()
		c.mu.Unlock()
		return snap, true
	}
	c.mu.Unlock()

	for _, s := range c.history.All() {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

// ActiveCount returns the number of in-progress sessions.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// History returns snapshots of retained terminal sessions, oldest first.
func (c *Coordinator) History() []Session {
	return c.history.All()
}

func (c *Coordinator) run(ctx context.Context, as *activeSession) {
	plan := as.plan

	for i := range plan.Steps {
		step := c.normalize(plan.Steps[i])

		c.mu.Lock()
		if as.session.Status != StatusInProgress {
			c.mu.Unlock()
			return // cancelled; Cancel owns rollback and completion
		}
		as.session.StepIndex = i
		c.mu.Unlock()

		start := time.Now()
		err := c.exec.RunStep(ctx, plan.ID, step)
		dur := time.Since(start)
		snap := c.sampler.Sample()

		c.mu.Lock()
		if as.session.Status != StatusInProgress {
			// Stale completion: the session reached a terminal state while
			// the step was in flight. Drop the result.
			c.mu.Unlock()
			return
		}
		as.session.Metrics.StepDurations[step.ID] = dur
		as.session.Metrics.recordPeak(snap)

		if err != nil {
			as.session.FailedSteps = append(as.session.FailedSteps, step.ID)
			as.session.Errors = append(as.session.Errors, err.Error())
			c.mu.Unlock()

			c.log.Warn("recovery step failed",
				"plan", plan.ID, "step", step.ID, "error", err)
			if step.Rollback != nil {
				c.runStepRollback(as, step)
			}
			c.runRollback(as)
			c.finish(as, StatusFailed)
			return
		}

		as.session.CompletedSteps = append(as.session.CompletedSteps, step.ID)
		c.mu.Unlock()
	}

	c.finish(as, StatusCompleted)
}

// runStepRollback executes a failed step's own undo, bounded by the step
// timeout. Failure is recorded in the session but does not change the flow.
func (c *Coordinator) runStepRollback(as *activeSession, step Step) {
	err := runBounded(context.Background(), step.Timeout, step.Rollback)
	if err != nil {
		c.log.Warn("step rollback failed",
			"plan", as.plan.ID, "step", step.ID, "error", err)
		c.mu.Lock()
		as.session.Errors = append(as.session.Errors,
			fmt.Sprintf("rollback of %s: %v", step.ID, err))
		c.mu.Unlock()
	}
}

// runRollback executes the plan-level rollback steps. Each is independently
// timeout-bound; a failing rollback step is logged into the session and the
// remaining steps still run. Uses a fresh context so cleanup proceeds even
// for cancelled sessions.
func (c *Coordinator) runRollback(as *activeSession) {
	start := time.Now()
	for i := range as.plan.Rollback {
		rb := c.normalize(as.plan.Rollback[i])
		if err := c.exec.RunStep(context.Background(), as.plan.ID, rb); err != nil {
			c.log.Warn("rollback step failed",
				"plan", as.plan.ID, "step", rb.ID, "error", err)
			c.mu.Lock()
			as.session.Errors = append(as.session.Errors,
				fmt.Sprintf("rollback %s: %v", rb.ID, err))
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	as.session.Metrics.RollbackDuration = time.Since(start)
	c.mu.Unlock()
}

// finish moves a session to its terminal state exactly once: removes it
// from the active set, appends it to history, and notifies subscribers.
func (c *Coordinator) finish(as *activeSession, status Status) {
	c.mu.Lock()
	if as.finished {
		c.mu.Unlock()
		return
	}
	as.finished = true
	if as.session.Status == StatusInProgress {
		as.session.Status = status
	}
	as.session.EndedAt = time.Now()
	delete(c.active, as.session.ID)
	snap := as.session.snapshot()
	subs := append([]CompletionFunc(nil), c.subs...)
	c.mu.Unlock()

	c.history.Append(snap)
	metrics.ActiveRecoverySessions.Dec()
	metrics.RecoverySessions.WithLabelValues(snap.PlanID, string(snap.Status)).Inc()
	c.log.Info("recovery session finished",
		"plan", snap.PlanID, "session", snap.ID, "status", snap.Status,
		"duration", snap.EndedAt.Sub(snap.StartedAt))

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Coordinator) normalize(step Step) Step {
	if step.Timeout <= 0 {
		step.Timeout = c.cfg.DefaultStepTimeout
	}
	return step
}
