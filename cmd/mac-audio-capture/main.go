package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sparticleinc/mac-audio-capture/internal/config"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

var flags struct {
	sampleRate float64
	channels   int
	outputDir  string
	logFile    string
	interval   int
}

func main() {
	root := &cobra.Command{
		Use:     "mac-audio-capture",
		Short:   "Capture macOS system output audio through a process tap",
		Version: Version + " (" + Commit + ")",
	}

	cfg, err := config.Load()
	if err != nil {
		defaults := config.Default()
		cfg = &defaults
	}

	pf := root.PersistentFlags()
	pf.Float64Var(&flags.sampleRate, "sample-rate", cfg.SampleRate, "session sample rate in Hz")
	pf.IntVar(&flags.channels, "channels", cfg.ChannelCount, "session channel count")
	pf.StringVar(&flags.outputDir, "output-dir", cfg.OutputDir, "directory for captured WAV files")
	pf.StringVar(&flags.logFile, "log-file", cfg.LogPath, "log file path (console only if empty)")

	root.AddCommand(newRecordCmd(), newInfoCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// flagConfig folds the command-line flags into a typed configuration; the
// loose flag bag stays a façade concern.
func flagConfig() config.Config {
	return config.Config{
		SampleRate:   flags.sampleRate,
		ChannelCount: flags.channels,
		LogPath:      flags.logFile,
		OutputDir:    flags.outputDir,
	}
}
