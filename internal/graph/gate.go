// SPDX-License-Identifier: MIT
package graph

import (
	"math"
	"sync/atomic"
)

// Gate is a branchless noise gate. The threshold is an absolute int32
// amplitude held atomically so the real-time path and control path never
// contend on a lock.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Int32 // Absolute amplitude threshold (0..math.MaxInt32).
}

// NewGate returns an enabled gate at roughly 0.1% of full scale, the same
// floor the capture engine has always defaulted to.
func NewGate() Gate {
	g := Gate{}
	g.enabled.Store(true)
	g.threshold.Store(math.MaxInt32 / 1000)
	return g
}

func (g *Gate) Enable()  { g.enabled.Store(true) }
func (g *Gate) Disable() { g.enabled.Store(false) }

// SetThreshold adjusts the gate threshold from a 0.0-1.0 ratio where
// 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold.Store(int32(threshold * float64(math.MaxInt32)))
}

// Threshold returns the current threshold as a 0.0-1.0 ratio.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold.Load()) / float64(math.MaxInt32)
}

// Open reports whether the buffer's peak amplitude clears the threshold.
// Performance Critical (Hot Path):
// - Branchless abs and max, no allocations
func (g *Gate) Open(buffer []int32) bool {
	if !g.enabled.Load() {
		return true
	}

	var maxAmplitude int32
	for i := range buffer {
		sample := buffer[i]
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}

	return maxAmplitude > g.threshold.Load()
}
