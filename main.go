package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"audiotap/cmd"
	"audiotap/internal/audio"
	applog "audiotap/internal/log"
	"audiotap/internal/taps"
	"audiotap/internal/transport"
	"audiotap/internal/transport/udp"
	"audiotap/internal/tui"
	"audiotap/pkg/build"
)

// main is the entry point for the capture application.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Initialize PortAudio
//   - Parse command line arguments
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Build the engine and its processing chain
//   - Install the configured taps
//   - Begin input stream processing
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Remove taps, stop recording, and release resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	build.Initialize()

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to the audio callback (time-critical)
	// - One thread for UI and I/O operations
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		log.Fatal(err)
	}
	defer audio.Terminate()

	cfg, err := cmd.ParseArgs()
	if err != nil {
		log.Fatal(err)
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	// One-off commands run without the engine.
	if cfg.Command != "" {
		if err := executeCommand(cfg.Command); err != nil {
			log.Fatal(err)
		}
		return
	}

	if !cfg.TUIMode {
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	engine, err := audio.NewEngine(cfg)
	if err != nil {
		log.Fatal(err)
	}

	chain := engine.Graph()
	var closers []func() error

	// Spectrum tap on the gate node, so analysis only sees audible signal.
	if cfg.Taps.SpectrumEnabled {
		windowFn, err := taps.ParseWindowFunc(cfg.Taps.FFTWindow)
		if err != nil {
			log.Fatal(err)
		}

		var tr transport.Transport
		if cfg.Transport.WebSocketEnabled {
			tr = transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr)
		} else {
			tr = transport.NewLoggingTransport()
		}

		spectrum, err := taps.NewSpectrum(cfg.Audio.FramesPerBuffer,
			cfg.Audio.SampleRate, windowFn, tr)
		if err != nil {
			log.Fatal(err)
		}
		if err := engine.InstallTap(chain.Gate(), 0,
			uint32(cfg.Audio.FramesPerBuffer), nil, spectrum.Tap); err != nil {
			log.Fatal(err)
		}
		closers = append(closers, spectrum.Close, tr.Close)

		// Band energy summaries ride the same transport at 10Hz.
		bands := taps.NewBandEnergy(tr, spectrum)
		bandTicker := time.NewTicker(100 * time.Millisecond)
		bandDone := make(chan struct{})
		go func() {
			for {
				select {
				case <-bandTicker.C:
					if err := bands.Process(); err != nil {
						applog.Debugf("Band energy: %v", err)
					}
				case <-bandDone:
					return
				}
			}
		}()
		closers = append(closers, func() error {
			bandTicker.Stop()
			close(bandDone)
			return nil
		})

		if cfg.Transport.UDPEnabled {
			sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
			if err != nil {
				log.Fatal(err)
			}
			publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval,
				sender, spectrum)
			if err != nil {
				log.Fatal(err)
			}
			publisher.Start()
			closers = append(closers, publisher.Stop, sender.Close)
		}
	}

	// Peak meter on the source node feeds the TUI's level bar.
	var meter *taps.Meter
	if cfg.Taps.MeterEnabled {
		meter = taps.NewMeter()
		if err := engine.InstallTap(chain.Source(), 0,
			uint32(cfg.Audio.FramesPerBuffer), nil, meter.Tap); err != nil {
			log.Fatal(err)
		}
	}

	// Monitor plays the gated signal on the default output device.
	if cfg.Taps.MonitorEnabled {
		monitor, err := taps.NewMonitor(chain.Format(), cfg.Audio.FramesPerBuffer)
		if err != nil {
			log.Fatal(err)
		}
		// The gate node's second bus, so monitoring coexists with the
		// spectrum tap and the recorder.
		if err := engine.InstallTap(chain.Gate(), 1,
			uint32(cfg.Audio.FramesPerBuffer), nil, monitor.Tap); err != nil {
			log.Fatal(err)
		}
		closers = append(closers, monitor.Close)
	}

	// CRITICAL: the first callback after StartInputStream marks the start
	// of the hot path.
	if err := engine.StartInputStream(); err != nil {
		log.Fatal(err)
	}

	recordingPath := ""
	if cfg.Recording.Enabled {
		recordingPath, err = engine.StartRecording(cfg.Recording.OutputFile)
		if err != nil {
			log.Fatal(err)
		}
		applog.Infof("Recording to %s", recordingPath)
	}

	// The TUI owns the terminal until the user quits; a termination signal
	// also ends the session.
	var levelSrc transport.LevelProvider
	if meter != nil {
		levelSrc = meter
	}
	uiDone := make(chan error, 1)
	go func() {
		uiDone <- tui.Start(levelSrc)
	}()

	select {
	case <-done:
	case err := <-uiDone:
		if err != nil {
			applog.Errorf("UI error: %v", err)
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if recordingPath != "" {
		if err := engine.StopRecording(); err != nil {
			applog.Errorf("Error stopping recording: %v", err)
		} else {
			fmt.Printf("\nRecording saved to: %s\n", recordingPath)
		}
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			applog.Warnf("Shutdown: %v", err)
		}
	}

	if err := engine.Close(); err != nil {
		applog.Errorf("Error closing audio engine: %v", err)
	}
}

// executeCommand handles one-off commands that run without the engine.
func executeCommand(command string) error {
	switch command {
	case "list":
		return audio.ListDevices()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}
