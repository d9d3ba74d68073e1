package domain

// FailureType classifies the subsystem a failure originated in. Recovery
// plans are keyed by these values.
type FailureType string

const (
	FailureTypeConnection  FailureType = "connection"
	FailureTypePipeline    FailureType = "pipeline"
	FailureTypePerformance FailureType = "performance"
	FailureTypeSystem      FailureType = "system"
)

// Severity ranks how badly a failure degrades the dashboard.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ErrorReport is the classification tuple supplied by an error source.
// The recovery coordinator consumes reports; it never originates them.
type ErrorReport struct {
	Type      FailureType
	Severity  Severity
	Message   string
	Recovered bool
}
