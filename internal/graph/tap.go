// SPDX-License-Identifier: MIT
package graph

import (
	"sync/atomic"

	applog "audiotap/internal/log"

	"github.com/go-audio/audio"
)

// tap is one installed observer. Immutable after installation; the slot it
// occupies is swapped atomically so dispatch never takes a lock.
type tap struct {
	fn        TapFunc
	requested uint32       // Requested buffer size in frames, informational.
	format    audio.Format // Effective delivery format (native when nil was passed).
}

// nodeCore carries the name, format, and tap slots shared by every concrete
// node type. One tap per bus, mirroring the platform frameworks this package
// models.
type nodeCore struct {
	name    string
	native  audio.Format
	buses   []atomic.Pointer[tap]
	inGraph atomic.Bool
}

func newNodeCore(name string, native audio.Format, busCount int) nodeCore {
	return nodeCore{
		name:   name,
		native: native,
		buses:  make([]atomic.Pointer[tap], busCount),
	}
}

func (c *nodeCore) Name() string        { return c.name }
func (c *nodeCore) OutputBusCount() int { return len(c.buses) }

func (c *nodeCore) NativeFormat(bus int) audio.Format {
	if bus < 0 || bus >= len(c.buses) {
		return audio.Format{}
	}
	return c.native
}

func (c *nodeCore) attached() bool { return c.inGraph.Load() }

// installTap is the installation primitive. Contract violations raise
// (panic) the way the underlying platform frameworks throw; only the
// detached-node case uses the primitive's own error channel. Validation is
// complete before the tap slot is touched, so a raised failure leaves the
// node exactly as it was.
func (c *nodeCore) installTap(bus int, bufferSize uint32, format *audio.Format, fn TapFunc) error {
	if bus < 0 || bus >= len(c.buses) {
		raisef(ErrNameInvalidBus, map[string]any{"node": c.name, "bus": bus, "buses": len(c.buses)},
			"invalid bus %d on node %q (node has %d output buses)", bus, c.name, len(c.buses))
	}
	if !c.inGraph.Load() {
		return ErrNodeDetached
	}
	if fn == nil {
		raisef(ErrNameInvalidArgument, map[string]any{"node": c.name, "bus": bus},
			"nil tap callback for node %q bus %d", c.name, bus)
	}
	if bufferSize == 0 {
		raisef(ErrNameInvalidArgument, map[string]any{"node": c.name, "bus": bus},
			"tap buffer size must be positive on node %q bus %d", c.name, bus)
	}

	effective := c.native
	if format != nil {
		if format.SampleRate != c.native.SampleRate || format.NumChannels != c.native.NumChannels {
			raisef(ErrNameFormatMismatch,
				map[string]any{
					"node": c.name, "bus": bus,
					"requested": *format, "native": c.native,
				},
				"format %d Hz/%dch does not match native %d Hz/%dch on node %q bus %d",
				format.SampleRate, format.NumChannels,
				c.native.SampleRate, c.native.NumChannels, c.name, bus)
		}
		effective = *format
	}

	// Registration is the final step. CompareAndSwap keeps the one-tap-per-bus
	// invariant even against a concurrent install on the same bus.
	t := &tap{fn: fn, requested: bufferSize, format: effective}
	if !c.buses[bus].CompareAndSwap(nil, t) {
		raisef(ErrNameBusAlreadyTapped, map[string]any{"node": c.name, "bus": bus},
			"node %q bus %d already has a tap installed", c.name, bus)
	}

	return nil
}

// removeTap clears the tap slot for the given bus. Removing from an untapped
// bus is a no-op; an out-of-range bus raises like the installation primitive.
func (c *nodeCore) removeTap(bus int) {
	if bus < 0 || bus >= len(c.buses) {
		raisef(ErrNameInvalidBus, map[string]any{"node": c.name, "bus": bus, "buses": len(c.buses)},
			"invalid bus %d on node %q (node has %d output buses)", bus, c.name, len(c.buses))
	}
	c.buses[bus].Store(nil)
}

// dispatch invokes the tap installed on bus, if any. Runs on the real-time
// callback goroutine: a panicking callback must not take down the audio
// thread, so the call is recover-isolated and a panicking tap is dropped.
func (c *nodeCore) dispatch(bus int, buf *Buffer, when Time) {
	t := c.buses[bus].Load()
	if t == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.buses[bus].CompareAndSwap(t, nil)
			applog.Errorf("graph: tap on node %q bus %d panicked and was removed: %v",
				c.name, bus, asTapError(r))
		}
	}()

	t.fn(buf, when)
}

// tapped reports whether a tap is currently installed on bus.
// Out-of-range buses report false rather than raising; this is a read-only
// convenience, not part of the installation contract.
func (c *nodeCore) tapped(bus int) bool {
	if bus < 0 || bus >= len(c.buses) {
		return false
	}
	return c.buses[bus].Load() != nil
}
