// SPDX-License-Identifier: MIT
package graph

import (
	"testing"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidFormat(t *testing.T) {
	_, err := New(audio.Format{NumChannels: 0, SampleRate: 44100})
	assert.Error(t, err)

	_, err = New(audio.Format{NumChannels: 1, SampleRate: 0})
	assert.Error(t, err)
}

func TestPushBufferDispatchOrder(t *testing.T) {
	g := newTestGraph(t)
	g.Gate().Gate().Disable()

	var order []string
	tapNamed := func(name string) TapFunc {
		return func(buf *Buffer, when Time) { order = append(order, name) }
	}
	require.NoError(t, TryInstallTap(g.Source(), 0, 256, nil, tapNamed("source")))
	require.NoError(t, TryInstallTap(g.Gate(), 0, 256, nil, tapNamed("gate")))
	require.NoError(t, TryInstallTap(g.Sink(), 0, 256, nil, tapNamed("sink")))

	g.PushBuffer(make([]int32, 256), Time{SampleRate: 44100})

	assert.Equal(t, []string{"source", "gate", "sink"}, order)
}

func TestPushBufferClosedGateSkipsDownstream(t *testing.T) {
	g := newTestGraph(t)
	g.Gate().Gate().SetThreshold(0.5)

	var sourceCalls, sinkCalls int
	require.NoError(t, TryInstallTap(g.Source(), 0, 256, nil, func(buf *Buffer, when Time) {
		sourceCalls++
	}))
	require.NoError(t, TryInstallTap(g.Sink(), 0, 256, nil, func(buf *Buffer, when Time) {
		sinkCalls++
	}))

	// Silence stays below any positive threshold.
	g.PushBuffer(make([]int32, 256), Time{SampleRate: 44100})
	assert.Equal(t, 1, sourceCalls, "source tap observes the raw input")
	assert.Zero(t, sinkCalls, "closed gate must not dispatch downstream")

	// Full-scale signal reopens the chain.
	loud := make([]int32, 256)
	for i := range loud {
		loud[i] = 1 << 30
	}
	g.PushBuffer(loud, Time{SampleRate: 44100})
	assert.Equal(t, 1, sinkCalls)
}

// A panicking tap is dropped without disturbing the rest of the chain or the
// audio thread.
func TestPushBufferPanickingTapIsIsolated(t *testing.T) {
	g := newTestGraph(t)
	g.Gate().Gate().Disable()

	var sinkCalls int
	require.NoError(t, TryInstallTap(g.Source(), 0, 256, nil, func(buf *Buffer, when Time) {
		panic("tap blew up")
	}))
	require.NoError(t, TryInstallTap(g.Sink(), 0, 256, nil, func(buf *Buffer, when Time) {
		sinkCalls++
	}))

	require.NotPanics(t, func() {
		g.PushBuffer(make([]int32, 64), Time{SampleRate: 44100})
	})
	assert.Equal(t, 1, sinkCalls)
	assert.False(t, g.Source().tapped(0), "panicking tap must be removed")

	// The freed bus accepts a new tap.
	require.NoError(t, TryInstallTap(g.Source(), 0, 256, nil, noopTap))
}

// The gate node carries a second output bus so two consumers can observe the
// gated signal independently.
func TestGateSecondBus(t *testing.T) {
	g := newTestGraph(t)
	g.Gate().Gate().Disable()

	assert.Equal(t, 2, g.Gate().OutputBusCount())

	var bus0, bus1 int
	require.NoError(t, TryInstallTap(g.Gate(), 0, 256, nil, func(buf *Buffer, when Time) {
		bus0++
	}))
	require.NoError(t, TryInstallTap(g.Gate(), 1, 256, nil, func(buf *Buffer, when Time) {
		bus1++
	}))

	g.PushBuffer(make([]int32, 256), Time{SampleRate: 44100})
	assert.Equal(t, 1, bus0)
	assert.Equal(t, 1, bus1)

	// Both buses honor the gate decision.
	g.Gate().Gate().Enable()
	g.Gate().Gate().SetThreshold(0.5)
	g.PushBuffer(make([]int32, 256), Time{SampleRate: 44100})
	assert.Equal(t, 1, bus0)
	assert.Equal(t, 1, bus1)
}

func TestPushBufferFrameAccounting(t *testing.T) {
	stereo, err := New(audio.Format{NumChannels: 2, SampleRate: 48000})
	require.NoError(t, err)
	stereo.Gate().Gate().Disable()

	var frames int
	require.NoError(t, TryInstallTap(stereo.Source(), 0, 256, nil, func(buf *Buffer, when Time) {
		frames = buf.Frames
	}))

	stereo.PushBuffer(make([]int32, 512), Time{SampleRate: 48000})
	assert.Equal(t, 256, frames, "frames = samples / channels")
}

// TestPushBufferHotPath verifies tap dispatch allocates nothing.
func TestPushBufferHotPath(t *testing.T) {
	g := newTestGraph(t)
	g.Gate().Gate().Disable()
	require.NoError(t, TryInstallTap(g.Source(), 0, 256, nil, noopTap))

	buffer := make([]int32, 256)
	when := Time{SampleRate: 44100}

	allocs := testing.AllocsPerRun(100, func() {
		g.PushBuffer(buffer, when)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in PushBuffer, got %.1f", allocs)
	}
}

func BenchmarkPushBuffer(b *testing.B) {
	g, err := New(testFormat)
	if err != nil {
		b.Fatal(err)
	}
	if err := TryInstallTap(g.Source(), 0, 512, nil, noopTap); err != nil {
		b.Fatal(err)
	}

	buffer := make([]int32, 512)
	when := Time{SampleRate: 44100}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		g.PushBuffer(buffer, when)
	}
}
