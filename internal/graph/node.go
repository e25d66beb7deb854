// SPDX-License-Identifier: MIT
/*
Package graph implements the audio processing chain and its tap mechanism.

A tap is a non-destructive observer installed on a node's output bus: it
receives a copy of every buffer flowing through the bus without altering the
signal path. Installation is exception-safe: the internal primitive raises
(panics) on framework-style contract violations, and the public entry points
translate any raised failure into a *TapError value. No panic ever crosses
the package boundary through TryInstallTap or RemoveTap.

Thread Safety:
- Tap slots are atomic pointers; the dispatch hot path takes no locks.
- Installation and removal are synchronous on the caller's goroutine.
- Dispatch happens on the engine's real-time callback goroutine.
*/
package graph

import (
	"time"

	"github.com/go-audio/audio"
)

// Node is a unit in the processing chain that produces, transforms, or
// consumes audio buffers. Taps are installed on a node's output buses.
type Node interface {
	// Name identifies the node in errors and logs.
	Name() string

	// OutputBusCount returns the number of output buses on this node.
	OutputBusCount() int

	// NativeFormat returns the format the node produces on the given bus.
	NativeFormat(bus int) audio.Format

	// Unexported surface used by TryInstallTap / RemoveTap. Nodes live in
	// this package; external code observes them through taps only.
	installTap(bus int, bufferSize uint32, format *audio.Format, fn TapFunc) error
	removeTap(bus int)
	attached() bool
}

// Buffer is the payload handed to a tap callback. The Data slice is owned by
// the engine and only valid for the duration of the callback; taps that keep
// audio must copy it out.
type Buffer struct {
	Data   []int32      // Interleaved samples, len = Frames * Format.NumChannels.
	Frames int          // Frame count actually delivered.
	Format audio.Format // Effective format of Data.
}

// Time carries the timing metadata for a delivered buffer.
type Time struct {
	SampleTime int64     // Frames elapsed since the stream started.
	HostTime   time.Time // Wall-clock capture time of the buffer.
	SampleRate float64   // Sample rate the SampleTime counts against.
}

// TapFunc is the tap callback. It is invoked on the engine's real-time
// callback goroutine; implementations must not block and must remain valid
// for as long as the tap stays installed.
type TapFunc func(buf *Buffer, when Time)
