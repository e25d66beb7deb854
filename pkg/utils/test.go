package utils

import (
	"math"
	"sync"
)

// MockTransport implements the transport.Transport interface for testing.
// It records every payload passed to Send.
type MockTransport struct {
	mu       sync.Mutex
	payloads []any
	closed   bool
}

// Send stores the payload for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Payloads returns a copy of everything sent so far.
func (m *MockTransport) Payloads() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.payloads))
	copy(out, m.payloads)
	return out
}

// LastPayload returns the most recent payload, or nil when nothing was sent.
func (m *MockTransport) LastPayload() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.payloads) == 0 {
		return nil
	}
	return m.payloads[len(m.payloads)-1]
}

// Closed reports whether Close has been called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave produces a 440Hz fundamental with two harmonics,
// scaled to 90% of full int32 range.
func GenerateComplexWave(size int, sampleRate float64) []int32 {
	buffer := make([]int32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int32(signal * math.MaxInt32 * 0.9)
	}
	return buffer
}

// GenerateSineWave produces a pure tone at the given frequency, scaled to
// 90% of full int32 range.
func GenerateSineWave(size int, sampleRate, frequency float64) []int32 {
	buffer := make([]int32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int32(math.Sin(2*math.Pi*frequency*t) * math.MaxInt32 * 0.9)
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in the given bin
// range, clamped to the slice bounds.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
