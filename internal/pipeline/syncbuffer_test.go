package pipeline

import (
	"testing"
	"time"
)

func frameAt(camera string, seq uint64, at time.Time) Frame {
	return Frame{Camera: camera, Sequence: seq, CapturedAt: at}
}

func TestSyncBuffer_RejectsWhileStopped(t *testing.T) {
	b := NewSyncBuffer(Config{BufferSize: 4})

	if b.Offer(frameAt("cam1", 1, time.Now())) {
		t.Error("stopped buffer accepted a frame")
	}

	if err := b.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !b.Offer(frameAt("cam1", 1, time.Now())) {
		t.Error("running buffer rejected a frame")
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if b.Offer(frameAt("cam1", 2, time.Now())) {
		t.Error("stopped buffer accepted a frame after Stop")
	}
}

func TestSyncBuffer_DropsAtPerCameraCapacity(t *testing.T) {
	b := NewSyncBuffer(Config{BufferSize: 2})
	b.Start()

	now := time.Now()
	for i := uint64(1); i <= 2; i++ {
		if !b.Offer(frameAt("cam1", i, now)) {
			t.Fatalf("frame %d rejected below capacity", i)
		}
	}
	if b.Offer(frameAt("cam1", 3, now)) {
		t.Error("frame accepted past per-camera capacity")
	}

	// Another camera still has room
	if !b.Offer(frameAt("cam2", 1, now)) {
		t.Error("second camera rejected with empty slot")
	}

	stats := b.Statistics()
	if stats.FramesBuffered != 3 || stats.FramesDropped != 1 {
		t.Errorf("unexpected counters: %+v", stats)
	}
}

func TestSyncBuffer_EmitWaitsForFullSet(t *testing.T) {
	b := NewSyncBuffer(Config{BufferSize: 4})
	b.Start()

	now := time.Now()
	b.Offer(frameAt("cam1", 1, now))
	b.Offer(frameAt("cam1", 2, now))
	b.Offer(frameAt("cam2", 1, now))

	set := b.Emit()
	if len(set) != 2 {
		t.Fatalf("expected one frame per camera, got %d", len(set))
	}
	seen := map[string]uint64{}
	for _, f := range set {
		seen[f.Camera] = f.Sequence
	}
	if seen["cam1"] != 1 || seen["cam2"] != 1 {
		t.Errorf("expected oldest frames emitted, got %v", seen)
	}

	// cam2 is now empty, so no further set is available
	if set := b.Emit(); set != nil {
		t.Errorf("expected nil without a full set, got %v", set)
	}
}

func TestSyncBuffer_ResetClearsEverything(t *testing.T) {
	b := NewSyncBuffer(Config{BufferSize: 1})
	b.Start()

	now := time.Now()
	b.Offer(frameAt("cam1", 1, now))
	b.Offer(frameAt("cam1", 2, now)) // dropped

	if err := b.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	stats := b.Statistics()
	if stats.FramesBuffered != 0 || stats.FramesDropped != 0 || stats.Cameras != 0 {
		t.Errorf("expected zeroed state after reset, got %+v", stats)
	}
}

func TestSyncBuffer_UpdateConfig(t *testing.T) {
	b := NewSyncBuffer(Config{BufferSize: 2})
	b.Start()

	bad := 0
	if err := b.UpdateConfig(ConfigPatch{BufferSize: &bad}); err == nil {
		t.Error("expected error for non-positive buffer size")
	}

	bigger := 3
	if err := b.UpdateConfig(ConfigPatch{BufferSize: &bigger}); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}

	now := time.Now()
	for i := uint64(1); i <= 3; i++ {
		if !b.Offer(frameAt("cam1", i, now)) {
			t.Errorf("frame %d rejected after capacity increase", i)
		}
	}
}

func TestSyncBuffer_SyncQuality(t *testing.T) {
	b := NewSyncBuffer(Config{BufferSize: 8, SyncWindow: 50 * time.Millisecond})
	b.Start()

	now := time.Now()
	b.Offer(frameAt("cam1", 1, now))
	b.Offer(frameAt("cam2", 1, now.Add(10*time.Millisecond)))

	q := b.SyncQuality()
	if q.Overall != 1.0 {
		t.Errorf("aligned feeds with no drops should score 1.0, got %f", q.Overall)
	}

	// cam3 lags far outside the sync window
	b.Offer(frameAt("cam3", 1, now.Add(-500*time.Millisecond)))
	q = b.SyncQuality()
	if q.Overall >= 1.0 {
		t.Errorf("skewed feeds should lower the score, got %f", q.Overall)
	}
	if q.PerCamera["cam3"] >= 1.0 {
		t.Errorf("lagging camera should be penalized, got %f", q.PerCamera["cam3"])
	}
	if q.PerCamera["cam2"] != 1.0 {
		t.Errorf("camera inside the window should keep 1.0, got %f", q.PerCamera["cam2"])
	}

	// Drops pull the score down independently of skew
	b2 := NewSyncBuffer(Config{BufferSize: 1})
	b2.Start()
	b2.Offer(frameAt("cam1", 1, now))
	b2.Offer(frameAt("cam1", 2, now)) // dropped
	if q := b2.SyncQuality(); q.Overall != 0.5 {
		t.Errorf("expected drop ratio 0.5, got %f", q.Overall)
	}
}
