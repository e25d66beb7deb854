// SPDX-License-Identifier: MIT
package taps

import (
	"fmt"
	"math"
	"sync"

	"audiotap/internal/graph"
	"audiotap/pkg/bitint"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	gaudio "github.com/go-audio/audio"
)

// Monitor is a tap consumer that plays the observed signal through the
// default output device via the beep speaker. Tapped frames are pushed into
// a bounded ring; the speaker drains it on its own goroutine and plays
// silence when the ring runs dry, so the tap never blocks the audio
// callback.
type Monitor struct {
	mu       sync.Mutex
	ring     [][2]float64
	head     int // Read position.
	size     int // Frames currently buffered.
	channels int
}

var _ beep.Streamer = (*Monitor)(nil)

// NewMonitor initializes the speaker at the capture sample rate and starts
// streaming. bufferFrames sets the speaker buffer; the ring holds roughly
// eight speaker buffers, rounded up to a power of 2, before old frames are
// overwritten.
func NewMonitor(format gaudio.Format, bufferFrames int) (*Monitor, error) {
	if format.NumChannels < 1 || format.NumChannels > 2 {
		return nil, fmt.Errorf("monitor supports 1 or 2 channels, got %d", format.NumChannels)
	}
	if bufferFrames <= 0 {
		return nil, fmt.Errorf("monitor buffer frames must be positive, got %d", bufferFrames)
	}

	if err := speaker.Init(beep.SampleRate(format.SampleRate), bufferFrames); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}

	m := &Monitor{
		ring:     make([][2]float64, bitint.NextPowerOfTwo(bufferFrames*8)),
		channels: format.NumChannels,
	}
	speaker.Play(m)
	return m, nil
}

// Tap is the graph.TapFunc for this consumer. When the ring is full the
// oldest frames are dropped; monitoring favors freshness over completeness.
func (m *Monitor) Tap(buf *graph.Buffer, when graph.Time) {
	const normFactor = 1.0 / float64(math.MaxInt32)

	m.mu.Lock()
	for f := 0; f < buf.Frames; f++ {
		var frame [2]float64
		if m.channels == 1 {
			v := float64(buf.Data[f]) * normFactor
			frame[0], frame[1] = v, v
		} else {
			frame[0] = float64(buf.Data[f*2]) * normFactor
			frame[1] = float64(buf.Data[f*2+1]) * normFactor
		}

		pos := (m.head + m.size) % len(m.ring)
		m.ring[pos] = frame
		if m.size < len(m.ring) {
			m.size++
		} else {
			m.head = (m.head + 1) % len(m.ring) // Overwrite oldest.
		}
	}
	m.mu.Unlock()
}

// Stream implements beep.Streamer, draining the ring and padding with
// silence. It always reports ok so the speaker keeps pulling.
func (m *Monitor) Stream(samples [][2]float64) (int, bool) {
	m.mu.Lock()
	n := 0
	for ; n < len(samples) && m.size > 0; n++ {
		samples[n] = m.ring[m.head]
		m.head = (m.head + 1) % len(m.ring)
		m.size--
	}
	m.mu.Unlock()

	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

// Err implements beep.Streamer; the monitor never fails.
func (m *Monitor) Err() error { return nil }

// Close stops playback and releases the speaker.
func (m *Monitor) Close() error {
	speaker.Close()
	return nil
}
