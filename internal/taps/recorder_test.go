// SPDX-License-Identifier: MIT
package taps

import (
	"os"
	"path/filepath"
	"testing"

	"audiotap/internal/graph"
	"audiotap/pkg/utils"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecorderValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := NewRecorder(filepath.Join(dir, "out.wav"), monoFormat, 512, 12, 5)
	assert.Error(t, err, "unsupported bit depth must be rejected")

	_, err = NewRecorder(filepath.Join(dir, "missing", "out.wav"), monoFormat, 512, 16, 5)
	assert.Error(t, err, "unwritable path must be rejected")
}

func TestRecorderWritesReadableWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.wav")

	r, err := NewRecorder(path, monoFormat, 512, 16, 5)
	require.NoError(t, err)
	assert.True(t, r.Recording())

	wave := utils.GenerateSineWave(512, 44100, 440)
	for range 4 {
		r.Tap(testBuffer(wave), graph.Time{SampleRate: 44100})
	}
	require.NoError(t, r.Close())
	assert.False(t, r.Recording())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile(), "recorder must produce a valid WAV file")

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, 4*512, len(buf.Data))
	assert.Equal(t, 44100, buf.Format.SampleRate)
	assert.Equal(t, 1, buf.Format.NumChannels)
}

func TestRecorderClampsOversizedBuffers(t *testing.T) {
	dir := t.TempDir()

	r, err := NewRecorder(filepath.Join(dir, "clamp.wav"), monoFormat, 256, 16, 5)
	require.NoError(t, err)

	// Twice the configured frames; the tap clamps rather than growing.
	big := utils.GenerateSineWave(512, 44100, 440)
	assert.NotPanics(t, func() {
		r.Tap(testBuffer(big), graph.Time{SampleRate: 44100})
	})
	require.NoError(t, r.Close())
}

func TestRecorderIgnoresTapsAfterClose(t *testing.T) {
	dir := t.TempDir()

	r, err := NewRecorder(filepath.Join(dir, "closed.wav"), monoFormat, 256, 16, 5)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.NotPanics(t, func() {
		r.Tap(testBuffer(make([]int32, 256)), graph.Time{})
	})
}
