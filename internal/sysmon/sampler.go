// Package sysmon provides a read-only resource usage sampler. The recovery
// coordinator polls it during step execution to record peak usage; it has no
// mutation contract and needs no locking.
package sysmon

import (
	"runtime"
	"time"
)

// Snapshot is a point-in-time view of process resource usage.
type Snapshot struct {
	HeapBytes     uint64
	HeapObjects   uint64
	Goroutines    int
	GCCPUFraction float64
	TakenAt       time.Time
}

// Sampler reads process resource usage from the runtime.
type Sampler struct{}

// Sample returns the current resource usage.
func (Sampler) Sample() Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Snapshot{
		HeapBytes:     ms.HeapAlloc,
		HeapObjects:   ms.HeapObjects,
		Goroutines:    runtime.NumGoroutine(),
		GCCPUFraction: ms.GCCPUFraction,
		TakenAt:       time.Now(),
	}
}
