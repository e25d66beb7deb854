// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"audiotap/pkg/bitint"
)

// Limits and defaults for the capture engine configuration.
const (
	MinDeviceID     = -1     // -1 selects the system default device.
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz).
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz).
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2).

	DefaultMaxWriteFailures = 5 // Consecutive WAV write failures before the recorder disarms.
)

// Config is the main application configuration, loaded from YAML with
// environment overrides applied on top.
type Config struct {
	Debug     bool            `yaml:"debug"`             // Verbose logging and debug features.
	LogLevel  string          `yaml:"log_level"`         // "debug", "info", "warn", "error".
	Command   string          `yaml:"command,omitempty"` // One-off command instead of running the engine (e.g. "list").
	TUIMode   bool            `yaml:"-"`                 // Set by the CLI, not the file.
	Audio     AudioConfig     `yaml:"audio"`             // Capture settings.
	Taps      TapsConfig      `yaml:"taps"`              // Built-in tap consumers.
	Recording RecordingConfig `yaml:"recording"`         // WAV recorder settings.
	Transport TransportConfig `yaml:"transport"`         // Spectrum publishing settings.
}

// AudioConfig holds capture device and buffer settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per processing buffer.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency from the device.
	Channels        int     `yaml:"channels"`          // Input channels (1=mono, 2=stereo).
}

// TapsConfig enables and tunes the built-in tap consumers.
type TapsConfig struct {
	SpectrumEnabled bool    `yaml:"spectrum_enabled"` // Install the FFT spectrum tap.
	FFTWindow       string  `yaml:"fft_window"`       // Window function name (e.g. "Hann").
	MeterEnabled    bool    `yaml:"meter_enabled"`    // Install the peak meter tap.
	MonitorEnabled  bool    `yaml:"monitor_enabled"`  // Play the tapped signal on the default output.
	GateThreshold   float64 `yaml:"gate_threshold"`   // Noise gate threshold, 0.0-1.0.
}

// RecordingConfig holds WAV recorder settings.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Record the sink tap to file.
	OutputFile string `yaml:"output_file"` // Output path; empty means auto-generated.
	BitDepth   int    `yaml:"bit_depth"`   // 16, 24, or 32.
}

// TransportConfig holds settings for publishing spectrum frames.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"` // Broadcast spectra over WebSocket.
	WebSocketAddr    string        `yaml:"websocket_addr"`    // Listen address, e.g. ":8080".
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send binary spectrum packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			SampleRate:      44100,
			FramesPerBuffer: 1024,
			LowLatency:      false,
			Channels:        1,
		},
		Taps: TapsConfig{
			SpectrumEnabled: true,
			FFTWindow:       "Hann",
			MeterEnabled:    true,
			MonitorEnabled:  false,
			GateThreshold:   0.001,
		},
		Recording: RecordingConfig{
			Enabled:    false,
			OutputFile: "",
			BitDepth:   16,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddr:    ":8080",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // ~30Hz.
		},
	}
}

// Load loads configuration from the YAML file at path. An empty path falls
// back to "config.yaml" in the working directory, then to the built-in
// defaults. Environment overrides are applied after the file, then the
// result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		} else {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded configuration against engine limits.
func (c *Config) Validate() error {
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside supported range %d-%d",
			c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d outside supported range 1-%d",
			c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if !bitint.IsPowerOfTwo(c.Audio.FramesPerBuffer) {
		return fmt.Errorf("audio.frames_per_buffer %d must be a power of 2",
			c.Audio.FramesPerBuffer)
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got %d", c.Audio.Channels)
	}
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device %d is invalid", c.Audio.InputDevice)
	}
	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("recording.bit_depth must be 16, 24, or 32, got %d", c.Recording.BitDepth)
	}
	if c.Taps.GateThreshold < 0 || c.Taps.GateThreshold > 1 {
		return fmt.Errorf("taps.gate_threshold must be within 0.0-1.0, got %f", c.Taps.GateThreshold)
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	return nil
}

// applyEnvOverrides applies AUDIOTAP_* environment variables on top of the
// loaded configuration.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("AUDIOTAP_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
		}
	}
	if val, ok := os.LookupEnv("AUDIOTAP_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("AUDIOTAP_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("AUDIOTAP_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("AUDIOTAP_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
		}
	}
	if val, ok := os.LookupEnv("AUDIOTAP_WEBSOCKET_ADDR"); ok {
		c.Transport.WebSocketAddr = val
	}
}
