// Package pipeline holds the frame-synchronization collaborator contract and
// an in-memory implementation. Recovery plans call the contract surface only
// and never reach into buffer internals.
package pipeline

import "time"

// Statistics is a snapshot of pipeline throughput counters.
type Statistics struct {
	Running        bool
	Cameras        int
	FramesBuffered uint64
	FramesEmitted  uint64
	FramesDropped  uint64
}

// SyncQuality scores how well camera feeds are aligned, 0 to 1.
type SyncQuality struct {
	Overall   float64
	PerCamera map[string]float64
}

// Config holds sync buffer tuning.
type Config struct {
	BufferSize int           `yaml:"buffer_size"` // frames retained per camera
	SyncWindow time.Duration `yaml:"sync_window"` // max skew between feeds
}

// ConfigPatch is a partial configuration update; nil fields keep their
// current value.
type ConfigPatch struct {
	BufferSize *int
	SyncWindow *time.Duration
}

// Pipeline is the contract recovery steps operate against.
type Pipeline interface {
	Reset() error
	Start() error
	Stop() error
	UpdateConfig(patch ConfigPatch) error
	Statistics() Statistics
	SyncQuality() SyncQuality
}
