// SPDX-License-Identifier: MIT
/*
Package audio implements the real-time capture engine:
- Lock-free audio capture using PortAudio
- A tap-based processing chain (see internal/graph)
- WAV recording via a recorder tap on the sink node

Thread Safety:
- Pre-allocates buffers to avoid GC in the hot path
- Locks the OS thread during audio processing
- Tap installation and removal go through the graph's exception-safe
  entry points and never touch the hot path directly
*/
package audio

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"audiotap/internal/config"
	"audiotap/internal/graph"
	"audiotap/internal/taps"

	gaudio "github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"
)

type Engine struct {
	// Core configuration and chain.
	config *config.Config
	chain  *graph.Graph

	// Audio input handling.
	inputBuffer  []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Sample-time accounting for tap timing metadata.
	sampleTime int64

	// Engine-managed recording tap, nil when not recording.
	recorder *taps.Recorder
}

func NewEngine(cfg *config.Config) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	format := gaudio.Format{
		NumChannels: cfg.Audio.Channels,
		SampleRate:  int(cfg.Audio.SampleRate),
	}
	chain, err := graph.New(format)
	if err != nil {
		return nil, err
	}
	chain.Gate().Gate().SetThreshold(cfg.Taps.GateThreshold)

	engine := &Engine{
		config:      cfg,
		chain:       chain,
		inputBuffer: make([]int32, cfg.Audio.FramesPerBuffer*cfg.Audio.Channels),
		inputDevice: inputDevice,
	}

	if cfg.Audio.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	return engine, nil
}

// Graph exposes the processing chain so callers can pick tap points.
func (e *Engine) Graph() *graph.Graph { return e.chain }

// InstallTap installs fn on node's output bus through the exception-safe
// installer. See graph.TryInstallTap for the full contract.
func (e *Engine) InstallTap(node graph.Node, bus int, bufferSize uint32, format *gaudio.Format, fn graph.TapFunc) error {
	return graph.TryInstallTap(node, bus, bufferSize, format, fn)
}

// RemoveTap uninstalls the tap on node's output bus.
func (e *Engine) RemoveTap(node graph.Node, bus int) error {
	return graph.RemoveTap(node, bus)
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Audio.Channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		return err
	}

	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
	}

	return nil
}

// processInputStream is the core audio processing callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	copy(e.inputBuffer, in)

	when := graph.Time{
		SampleTime: e.sampleTime,
		HostTime:   time.Now(),
		SampleRate: e.config.Audio.SampleRate,
	}
	e.chain.PushBuffer(e.inputBuffer, when)

	e.sampleTime += int64(len(in) / e.config.Audio.Channels)
}

// StartRecording installs a WAV recorder tap on the sink node. The filename
// defaults to recording-<timestamp>.wav in the working directory when empty.
func (e *Engine) StartRecording(filename string) (string, error) {
	if e.recorder != nil {
		return "", fmt.Errorf("already recording")
	}

	if filename == "" {
		filename = filepath.Join(".",
			"recording-"+time.Now().UTC().Format("02-01-2006-150405")+".wav")
	}

	rec, err := taps.NewRecorder(filename, e.chain.Format(),
		e.config.Audio.FramesPerBuffer, e.config.Recording.BitDepth,
		config.DefaultMaxWriteFailures)
	if err != nil {
		return "", err
	}

	if err := graph.TryInstallTap(e.chain.Sink(), 0,
		uint32(e.config.Audio.FramesPerBuffer), nil, rec.Tap); err != nil {
		rec.Close()
		return "", fmt.Errorf("failed to install recorder tap: %w", err)
	}

	e.recorder = rec
	return filename, nil
}

// StopRecording removes the recorder tap and finalizes the WAV file.
func (e *Engine) StopRecording() error {
	if e.recorder == nil {
		return nil
	}

	if err := graph.RemoveTap(e.chain.Sink(), 0); err != nil {
		return err
	}

	err := e.recorder.Close()
	e.recorder = nil
	return err
}

func (e *Engine) Close() error {
	if e.recorder != nil {
		if err := e.StopRecording(); err != nil {
			return err
		}
	}

	return e.StopInputStream()
}
