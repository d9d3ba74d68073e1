package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// Frame is one camera frame entering the sync buffer.
type Frame struct {
	Camera     string
	Sequence   uint64
	CapturedAt time.Time
	Data       []byte
}

// SyncBuffer is the in-memory frame-synchronization buffer. Frames are held
// per camera; a camera at capacity drops incoming frames.
type SyncBuffer struct {
	mu      sync.Mutex
	cfg     Config
	running bool
	buffers map[string][]Frame

	buffered uint64
	emitted  uint64
	dropped  uint64
}

// NewSyncBuffer creates a stopped sync buffer.
func NewSyncBuffer(cfg Config) *SyncBuffer {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 30
	}
	if cfg.SyncWindow == 0 {
		cfg.SyncWindow = 100 * time.Millisecond
	}
	return &SyncBuffer{cfg: cfg, buffers: make(map[string][]Frame)}
}

// Start enables frame intake.
func (b *SyncBuffer) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = true
	return nil
}

// Stop disables frame intake. Buffered frames are kept until Reset.
func (b *SyncBuffer) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	return nil
}

// Reset drops all buffered frames and zeroes the throughput counters.
func (b *SyncBuffer) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffers = make(map[string][]Frame)
	b.buffered = 0
	b.emitted = 0
	b.dropped = 0
	return nil
}

// UpdateConfig applies a partial configuration update.
func (b *SyncBuffer) UpdateConfig(patch ConfigPatch) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if patch.BufferSize != nil {
		if *patch.BufferSize < 1 {
			return fmt.Errorf("buffer size must be positive, got %d", *patch.BufferSize)
		}
		b.cfg.BufferSize = *patch.BufferSize
	}
	if patch.SyncWindow != nil {
		b.cfg.SyncWindow = *patch.SyncWindow
	}
	return nil
}

// Offer adds a frame. Returns false when the buffer is stopped or the
// camera's slot is full.
func (b *SyncBuffer) Offer(f Frame) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return false
	}
	if len(b.buffers[f.Camera]) >= b.cfg.BufferSize {
		b.dropped++
		return false
	}
	b.buffers[f.Camera] = append(b.buffers[f.Camera], f)
	b.buffered++
	return true
}

// Emit pops the oldest frame from every camera once each camera has at
// least one frame. Returns nil until a full set is available.
func (b *SyncBuffer) Emit() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buffers) == 0 {
		return nil
	}
	for _, frames := range b.buffers {
		if len(frames) == 0 {
			return nil
		}
	}

	out := make([]Frame, 0, len(b.buffers))
	for cam, frames := range b.buffers {
		out = append(out, frames[0])
		b.buffers[cam] = frames[1:]
	}
	b.emitted += uint64(len(out))
	return out
}

// Statistics returns a snapshot of the throughput counters.
func (b *SyncBuffer) Statistics() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Statistics{
		Running:        b.running,
		Cameras:        len(b.buffers),
		FramesBuffered: b.buffered,
		FramesEmitted:  b.emitted,
		FramesDropped:  b.dropped,
	}
}

// SyncQuality scores alignment: the drop ratio dominates, and cameras whose
// newest frames sit outside the sync window are penalized.
func (b *SyncBuffer) SyncQuality() SyncQuality {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := SyncQuality{Overall: 1.0, PerCamera: make(map[string]float64)}
	total := b.buffered + b.dropped
	if total > 0 {
		q.Overall = float64(b.buffered) / float64(total)
	}

	var newest, oldest time.Time
	for cam, frames := range b.buffers {
		q.PerCamera[cam] = 1.0
		if len(frames) == 0 {
			continue
		}
		head := frames[len(frames)-1].CapturedAt
		if newest.IsZero() || head.After(newest) {
			newest = head
		}
		if oldest.IsZero() || head.Before(oldest) {
			oldest = head
		}
	}
	if !newest.IsZero() && newest.Sub(oldest) > b.cfg.SyncWindow {
		skew := float64(b.cfg.SyncWindow) / float64(newest.Sub(oldest))
		q.Overall *= skew
		for cam, frames := range b.buffers {
			if len(frames) > 0 && newest.Sub(frames[len(frames)-1].CapturedAt) > b.cfg.SyncWindow {
				q.PerCamera[cam] = skew
			}
		}
	}
	return q
}
