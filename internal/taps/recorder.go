// SPDX-License-Identifier: MIT
package taps

import (
	"fmt"
	"os"
	"sync/atomic"

	applog "audiotap/internal/log"
	"audiotap/internal/graph"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder is a tap consumer that encodes every observed buffer to a WAV
// file. Typically installed on the sink node so it records what survived
// the gate.
type Recorder struct {
	active        atomic.Bool
	outputFile    *os.File
	wavEncoder    *wav.Encoder
	sampleBuf     *gaudio.IntBuffer // Reusable buffer for format conversion.
	writeFailures int
	maxFailures   int
	bitDepth      int
}

// NewRecorder creates the output file and WAV encoder and starts recording
// immediately. maxFailures bounds consecutive write errors before the
// recorder disarms itself; <= 0 means never disarm.
func NewRecorder(filename string, format gaudio.Format, framesPerBuffer, bitDepth, maxFailures int) (*Recorder, error) {
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("unsupported bit depth %d (want 16, 24, or 32)", bitDepth)
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		outputFile:  file,
		wavEncoder:  wav.NewEncoder(file, format.SampleRate, bitDepth, format.NumChannels, 1),
		maxFailures: maxFailures,
		bitDepth:    bitDepth,
		sampleBuf: &gaudio.IntBuffer{
			Format: &gaudio.Format{
				NumChannels: format.NumChannels,
				SampleRate:  format.SampleRate,
			},
			Data: make([]int, framesPerBuffer*format.NumChannels),
		},
	}
	r.active.Store(true)
	return r, nil
}

// Tap is the graph.TapFunc for this consumer.
// Performance Critical:
// - Reuses the pre-allocated IntBuffer; only the encoder writes allocate
func (r *Recorder) Tap(buf *graph.Buffer, when graph.Time) {
	if !r.active.Load() {
		return
	}

	n := len(buf.Data)
	if n > cap(r.sampleBuf.Data) {
		n = cap(r.sampleBuf.Data)
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:n]

	// 32-bit capture shifted down to the encoder's bit depth.
	shift := uint(32 - r.bitDepth)
	for i := 0; i < n; i++ {
		r.sampleBuf.Data[i] = int(buf.Data[i] >> shift)
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		r.writeFailures++
		applog.Errorf("Recorder: error writing to WAV file: %v", err)
		if r.maxFailures > 0 && r.writeFailures >= r.maxFailures {
			applog.Errorf("Recorder: %d consecutive write failures, disarming", r.writeFailures)
			r.active.Store(false)
		}
		return
	}
	r.writeFailures = 0
}

// Recording reports whether the recorder is still armed.
func (r *Recorder) Recording() bool {
	return r.active.Load()
}

// Close disarms the recorder, finalizes the WAV header, and closes the file.
// The tap should be removed before Close so no writes race the shutdown.
func (r *Recorder) Close() error {
	r.active.Store(false)

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			return err
		}
		r.wavEncoder = nil
	}

	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}

	return nil
}
