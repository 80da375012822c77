package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sparticleinc/mac-audio-capture/internal/capture"
	"github.com/sparticleinc/mac-audio-capture/internal/coreaudio"
	"github.com/sparticleinc/mac-audio-capture/internal/logging"
	"github.com/sparticleinc/mac-audio-capture/internal/permissions"
	"github.com/sparticleinc/mac-audio-capture/internal/wavfile"
)

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record system audio until interrupted, then write a WAV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord()
		},
	}
	cmd.Flags().IntVar(&flags.interval, "interval", 250, "buffer poll interval in milliseconds")
	return cmd
}

func runRecord() error {
	cfg := flagConfig()
	log := logging.New(cfg.LogPath)

	host, err := coreaudio.NewHost()
	if err != nil {
		return err
	}
	if err := permissions.EnsureAudioCapture(host, log); err != nil {
		return err
	}

	mgr := capture.NewManager(host, cfg, log)
	if err := mgr.Configure(cfg); err != nil {
		return err
	}
	if err := mgr.Start(); err != nil {
		return err
	}
	session := mgr.Session()
	log.Info().Str("output", session.OutputPath()).Msg("capturing; press Ctrl-C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(flags.interval) * time.Millisecond)
	defer ticker.Stop()

	var segments []string
	for running := true; running; {
		select {
		case <-ticker.C:
			batch, err := mgr.AudioData()
			if err != nil {
				return err
			}
			segments = append(segments, batch...)
			if !session.IsRecording() {
				log.Warn().Msg("capture ended externally")
				running = false
			}
		case <-sigChan:
			log.Info().Msg("stopping capture")
			if err := mgr.Stop(); err != nil {
				log.Error().Err(err).Msg("stop failed")
			}
			running = false
		}
	}

	// Final drain after teardown; the callback no longer appends.
	if batch, err := mgr.AudioData(); err == nil {
		segments = append(segments, batch...)
	}

	samples, err := wavfile.DecodeSegments(segments)
	if err != nil {
		return err
	}
	format, ok := session.Format()
	if !ok {
		return fmt.Errorf("no session format recorded")
	}

	path := session.OutputPath()
	if err := wavfile.Write(path, int(format.SampleRate), int(format.ChannelsPerFrame), samples); err != nil {
		return err
	}
	log.Info().
		Str("path", path).
		Int("segments", len(segments)).
		Int("samples", len(samples)).
		Msg("wrote capture")
	fmt.Println(path)
	return nil
}
