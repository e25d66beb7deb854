// SPDX-License-Identifier: MIT
package graph

import (
	"fmt"

	"github.com/go-audio/audio"
)

// SourceNode is the chain's entry point; the capture engine pushes raw input
// buffers through it. Taps on its bus observe the signal before any
// conditioning.
type SourceNode struct {
	nodeCore
}

// GateNode applies the noise gate decision to the chain: when the gate is
// closed, downstream nodes are not dispatched. The buffer itself passes
// through unmodified; the gate only gates propagation. The node carries two
// output buses fed with identical buffers, so two independent consumers can
// tap the gated signal.
type GateNode struct {
	nodeCore
	gate Gate
}

// Gate returns the node's gate for threshold and enable control.
func (n *GateNode) Gate() *Gate { return &n.gate }

// SinkNode is the chain's terminal node. The built-in recorder taps here.
type SinkNode struct {
	nodeCore
}

// Graph is the fixed processing chain source → gate → sink. Buffers are
// pushed by the capture engine on its real-time callback goroutine; each
// node's bus 0 taps are dispatched in chain order.
type Graph struct {
	format audio.Format
	source *SourceNode
	gate   *GateNode
	sink   *SinkNode

	// Reused per push to keep the hot path allocation-free.
	buf Buffer
}

// New builds the chain for the given native format. Every node is attached
// on return, so taps can be installed immediately.
func New(format audio.Format) (*Graph, error) {
	if format.SampleRate <= 0 || format.NumChannels <= 0 {
		return nil, fmt.Errorf("graph: invalid native format %d Hz/%dch",
			format.SampleRate, format.NumChannels)
	}

	g := &Graph{
		format: format,
		source: &SourceNode{nodeCore: newNodeCore("source", format, 1)},
		gate:   &GateNode{nodeCore: newNodeCore("gate", format, 2), gate: NewGate()},
		sink:   &SinkNode{nodeCore: newNodeCore("sink", format, 1)},
	}
	g.source.inGraph.Store(true)
	g.gate.inGraph.Store(true)
	g.sink.inGraph.Store(true)

	return g, nil
}

// Source returns the chain's entry node.
func (g *Graph) Source() *SourceNode { return g.source }

// Gate returns the chain's gate node.
func (g *Graph) Gate() *GateNode { return g.gate }

// Sink returns the chain's terminal node.
func (g *Graph) Sink() *SinkNode { return g.sink }

// Format returns the chain's native format.
func (g *Graph) Format() audio.Format { return g.format }

// PushBuffer runs one buffer through the chain and dispatches taps in order.
// Performance Critical (Hot Path):
// - Called from the engine's real-time audio callback
// - No allocations; the Buffer header is reused across pushes
// - Tap slot loads are single atomic pointer reads
func (g *Graph) PushBuffer(data []int32, when Time) {
	g.buf.Data = data
	g.buf.Frames = len(data) / g.format.NumChannels
	g.buf.Format = g.format

	g.source.dispatch(0, &g.buf, when)

	if !g.gate.gate.Open(data) {
		return
	}
	g.gate.dispatch(0, &g.buf, when)
	g.gate.dispatch(1, &g.buf, when)

	g.sink.dispatch(0, &g.buf, when)
}
