// Package control is the composition root: it owns the connection manager,
// the recovery coordinator, the pipeline, and the health surface, and wires
// them together. Nothing here is a singleton; the CLI constructs one Service
// and passes it around.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/trackdeck/realtime/internal/conn"
	"github.com/trackdeck/realtime/internal/core/config"
	"github.com/trackdeck/realtime/internal/core/domain"
	"github.com/trackdeck/realtime/internal/health"
	"github.com/trackdeck/realtime/internal/pipeline"
	"github.com/trackdeck/realtime/internal/recovery"
)

// Service is the realtime core: connection layer plus recovery orchestrator
// plus their collaborators.
type Service struct {
	cfg config.AppConfig
	log *slog.Logger

	conn        *conn.Manager
	registry    *recovery.Registry
	coordinator *recovery.Coordinator
	buffer      *pipeline.SyncBuffer
	checker     *health.Monitor
	httpServer  *health.Server

	unsubs []func()
}

// NewService builds and wires all components from configuration.
func NewService(cfg config.AppConfig, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	buffer := pipeline.NewSyncBuffer(cfg.Pipeline)
	mgr := conn.NewManager(cfg.Connection, nil, log)
	registry := recovery.NewRegistry()
	coordinator := recovery.NewCoordinator(cfg.Recovery, registry, log)
	checker := health.NewMonitor(15*time.Second, log)

	s := &Service{
		cfg:         cfg,
		log:         log,
		conn:        mgr,
		registry:    registry,
		coordinator: coordinator,
		buffer:      buffer,
		checker:     checker,
		httpServer:  health.NewServer(checker, cfg.Server.Port),
	}

	if err := registerPlans(registry, mgr, buffer, checker); err != nil {
		return nil, fmt.Errorf("failed to register recovery plans: %w", err)
	}
	s.registerProbes()
	s.wireEvents()

	return s, nil
}

// Conn exposes the connection manager (metrics, manual send).
func (s *Service) Conn() *conn.Manager { return s.conn }

// Coordinator exposes the recovery coordinator (status, stats, cancel).
func (s *Service) Coordinator() *recovery.Coordinator { return s.coordinator }

// Pipeline exposes the sync buffer collaborator.
func (s *Service) Pipeline() *pipeline.SyncBuffer { return s.buffer }

// Start brings the service up: pipeline, health monitoring, HTTP surface,
// and the initial connection. A failed initial dial is not fatal; it raises
// an error report and the connection recovery plan takes over.
func (s *Service) Start(ctx context.Context) error {
	if err := s.buffer.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	s.checker.Start(ctx)

	go func() {
		if err := s.httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("health server failed", "error", err)
		}
	}()
	s.log.Info("health server listening", "port", s.cfg.Server.Port)

	if err := s.conn.Connect(ctx); err != nil {
		s.log.Warn("initial connect failed, recovery will retry", "error", err)
	}
	return nil
}

// Stop tears the service down in reverse order.
func (s *Service) Stop(ctx context.Context) error {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	if err := s.conn.Disconnect(); err != nil {
		s.log.Warn("disconnect failed", "error", err)
	}
	s.checker.Stop()
	if err := s.buffer.Stop(); err != nil {
		s.log.Warn("pipeline stop failed", "error", err)
	}
	if err := s.httpServer.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop health server: %w", err)
	}
	return nil
}

// wireEvents connects the subsystems: connection errors feed the recovery
// coordinator, and an established connection subscribes to the tracking
// stream.
func (s *Service) wireEvents() {
	unsubErr := s.conn.Events().Subscribe(conn.EventError, func(e conn.Event) {
		if e.Report != nil {
			s.coordinator.HandleReport(*e.Report)
		}
	})

	unsubState := s.conn.Events().Subscribe(conn.EventStateChange, func(e conn.Event) {
		if e.State != conn.StateConnected {
			return
		}
		if _, err := s.conn.Send(domain.ControlMessage(domain.MessageTypeSubscribeTracking)); err != nil {
			s.log.Warn("failed to subscribe to tracking stream", "error", err)
		}
	})

	s.unsubs = append(s.unsubs, unsubErr, unsubState)
}

func (s *Service) registerProbes() {
	s.checker.AddProbe("connection", func(ctx context.Context) health.ComponentHealth {
		switch s.conn.State() {
		case conn.StateConnected:
			return health.ComponentHealth{Status: health.StatusHealthy}
		case conn.StateReconnecting, conn.StateConnecting:
			return health.ComponentHealth{
				Status: health.StatusDegraded,
				Detail: s.conn.State().String(),
			}
		default:
			return health.ComponentHealth{
				Status: health.StatusCritical,
				Detail: s.conn.State().String(),
			}
		}
	})

	s.checker.AddProbe("pipeline", func(ctx context.Context) health.ComponentHealth {
		q := s.buffer.SyncQuality()
		switch {
		case q.Overall >= 0.8:
			return health.ComponentHealth{Status: health.StatusHealthy}
		case q.Overall >= 0.5:
			return health.ComponentHealth{
				Status: health.StatusDegraded,
				Detail: fmt.Sprintf("sync quality %.2f", q.Overall),
			}
		default:
			return health.ComponentHealth{
				Status: health.StatusCritical,
				Detail: fmt.Sprintf("sync quality %.2f", q.Overall),
			}
		}
	})

	s.checker.AddProbe("recovery", func(ctx context.Context) health.ComponentHealth {
		stats := s.coordinator.Stats()
		if stats.TotalSessions > 0 && stats.SuccessRate < 0.5 {
			return health.ComponentHealth{
				Status: health.StatusDegraded,
				Detail: fmt.Sprintf("success rate %.2f", stats.SuccessRate),
			}
		}
		return health.ComponentHealth{Status: health.StatusHealthy}
	})
}
