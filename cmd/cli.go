package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"audiotap/internal/config"
	"audiotap/pkg/build"
)

// ParseArgs loads the configuration file, layers command-line flags on top,
// and returns the effective configuration. Flags win over file values.
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetInfo()

	configPath := ""
	cfg := config.Default()

	var rootCmd *cobra.Command
	rootCmd = &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			// Re-apply only the flags the user set, so file values survive
			// for everything else.
			applyChangedFlags(rootCmd, cfg, loaded)
			*cfg = *loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.TUIMode = true
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			cfg.Command = "list"
			cfg.TUIMode = false
		},
	}
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML configuration file")

	// Audio device configuration
	rootCmd.PersistentFlags().IntVarP(&cfg.Audio.InputDevice, "device", "d", cfg.Audio.InputDevice,
		"Specify input device ID. Use 'list' command to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&cfg.Audio.Channels, "channels", "c", cfg.Audio.Channels,
		"Number of channels to record (1=mono, 2=stereo)")
	rootCmd.PersistentFlags().Float64VarP(&cfg.Audio.SampleRate, "sample-rate", "s", cfg.Audio.SampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&cfg.Audio.FramesPerBuffer, "frames-per-buffer", "b", cfg.Audio.FramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Audio.LowLatency, "low-latency", "l", cfg.Audio.LowLatency,
		"Use low latency mode for real-time processing")

	// Recording configuration
	rootCmd.PersistentFlags().BoolVarP(&cfg.Recording.Enabled, "record", "r", cfg.Recording.Enabled,
		"Record audio from the specified input device")
	rootCmd.PersistentFlags().StringVarP(&cfg.Recording.OutputFile, "output", "o", cfg.Recording.OutputFile,
		"Output file name. Default is recording-MM-DD-YYYY-HHMMSS.wav")

	// Monitoring and debug
	rootCmd.PersistentFlags().BoolVarP(&cfg.Taps.MonitorEnabled, "monitor", "m", cfg.Taps.MonitorEnabled,
		"Play the tapped signal on the default output device")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Debug, "verbose", "v", cfg.Debug,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyChangedFlags copies the config fields backing flags the user actually
// set on the command line into a freshly loaded file configuration.
func applyChangedFlags(cmd *cobra.Command, flags, loaded *config.Config) {
	set := map[string]func(){
		"device":            func() { loaded.Audio.InputDevice = flags.Audio.InputDevice },
		"channels":          func() { loaded.Audio.Channels = flags.Audio.Channels },
		"sample-rate":       func() { loaded.Audio.SampleRate = flags.Audio.SampleRate },
		"frames-per-buffer": func() { loaded.Audio.FramesPerBuffer = flags.Audio.FramesPerBuffer },
		"low-latency":       func() { loaded.Audio.LowLatency = flags.Audio.LowLatency },
		"record":            func() { loaded.Recording.Enabled = flags.Recording.Enabled },
		"output":            func() { loaded.Recording.OutputFile = flags.Recording.OutputFile },
		"monitor":           func() { loaded.Taps.MonitorEnabled = flags.Taps.MonitorEnabled },
		"verbose":           func() { loaded.Debug = flags.Debug },
	}

	for name, apply := range set {
		if f := cmd.PersistentFlags().Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
}
