// Package health provides the health-check collaborator used by recovery
// plans and the HTTP surface exposing status and metrics.
package health

import (
	"context"
	"time"
)

// Status ranks component health. Worst case wins when aggregating.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// ComponentHealth is the result of one probe.
type ComponentHealth struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report aggregates all probes at one point in time.
type Report struct {
	Overall    Status                     `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
	CheckedAt  time.Time                  `json:"checked_at"`
}

// Probe inspects one component.
type Probe func(ctx context.Context) ComponentHealth

// Checker is the collaborator contract recovery steps call.
type Checker interface {
	CheckNow(ctx context.Context) Report
	Start(ctx context.Context)
	Stop()
	IsHealthy() bool
}
