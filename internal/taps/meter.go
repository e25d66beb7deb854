// SPDX-License-Identifier: MIT
package taps

import (
	"math"
	"sync/atomic"

	"audiotap/internal/graph"
	"audiotap/internal/transport"
)

// Meter is a tap consumer that tracks the peak amplitude of each observed
// buffer. The level is stored atomically so UI readers never contend with
// the audio thread.
type Meter struct {
	peak atomic.Int32 // Peak absolute amplitude of the last buffer.
}

var _ transport.LevelProvider = (*Meter)(nil)

// NewMeter creates a peak meter tap.
func NewMeter() *Meter {
	return &Meter{}
}

// Tap is the graph.TapFunc for this consumer.
// Performance Critical (Hot Path):
// - Branchless abs and max, no allocations
func (m *Meter) Tap(buf *graph.Buffer, when graph.Time) {
	var maxAmplitude int32
	for i := range buf.Data {
		sample := buf.Data[i]
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}
	m.peak.Store(maxAmplitude)
}

// Level returns the last buffer's peak normalized to 0.0-1.0.
func (m *Meter) Level() float64 {
	return float64(m.peak.Load()) / float64(math.MaxInt32)
}
