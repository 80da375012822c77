// Package recorder binds one audio tap to one output identity and
// accumulates captured audio as Base64 segments for the consumer to drain.
package recorder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/sparticleinc/mac-audio-capture/internal/config"
	"github.com/sparticleinc/mac-audio-capture/internal/coreaudio"
	"github.com/sparticleinc/mac-audio-capture/internal/tap"
)

// ErrStreamFormatNotAvailable is returned by Start when the activated tap
// cannot report a stream format to derive the session format from.
var ErrStreamFormatNotAvailable = errors.New("stream format not available")

// ErrFormatConstruction is returned by Start when the overridden format
// description does not describe a layout this recorder can capture.
var ErrFormatConstruction = errors.New("session format construction failed")

// Recorder is one capture session. Start/Stop/AudioData are called from
// consumer goroutines; the encode-and-append path runs on the platform's
// real-time audio thread.
type Recorder struct {
	tap        *tap.Tap
	cfg        config.Config
	log        zerolog.Logger
	outputPath string

	recording atomic.Bool

	// bufMu guards segments. The real-time thread takes it only for an
	// append and the consumer only for a slice swap, so neither side can
	// hold the other up for more than a bounded moment.
	bufMu    sync.Mutex
	segments []string

	fmtMu     sync.Mutex
	format    coreaudio.StreamDescription
	hasFormat bool
}

// New returns an idle recorder. The session format is frozen from cfg and
// the tap's native format at Start time.
func New(t *tap.Tap, cfg config.Config, outputPath string, log zerolog.Logger) *Recorder {
	return &Recorder{
		tap:        t,
		cfg:        cfg,
		log:        log.With().Str("component", "recorder").Logger(),
		outputPath: outputPath,
	}
}

// Start activates the tap if needed, constructs the session format and
// registers the real-time callback. Already-recording is a warned no-op.
func (r *Recorder) Start() error {
	if r.recording.Load() {
		r.log.Warn().Msg("start ignored; already recording")
		return nil
	}

	if !r.tap.Activated() {
		r.tap.Activate()
		if err := r.tap.LastError(); err != nil {
			return err
		}
	}

	native, ok := r.tap.StreamFormat()
	if !ok {
		return ErrStreamFormatNotAvailable
	}
	format, err := r.sessionFormat(native)
	if err != nil {
		return err
	}

	if err := r.tap.Run(r.ioProc, r.invalidated); err != nil {
		return err
	}

	r.fmtMu.Lock()
	r.format = format
	r.hasFormat = true
	r.fmtMu.Unlock()
	r.recording.Store(true)
	r.log.Info().
		Float64("sample_rate", format.SampleRate).
		Uint32("channels", format.ChannelsPerFrame).
		Str("output", r.outputPath).
		Msg("recording started")
	return nil
}

// sessionFormat applies configuration overrides to the native format
// description. Only the description changes; the hardware keeps producing
// its native format, so an override that alters the frame layout is a
// byte-interpretation risk the caller has opted into.
func (r *Recorder) sessionFormat(native coreaudio.StreamDescription) (coreaudio.StreamDescription, error) {
	format := native
	if r.cfg.SampleRate > 0 && r.cfg.SampleRate != format.SampleRate {
		format.SampleRate = r.cfg.SampleRate
	}
	if r.cfg.ChannelCount > 0 && uint32(r.cfg.ChannelCount) != format.ChannelsPerFrame {
		format.ChannelsPerFrame = uint32(r.cfg.ChannelCount)
		// Keep the derived fields arithmetically consistent with the
		// overridden channel count for interleaved layouts.
		if format.FormatFlags&coreaudio.FormatFlagIsNonInterleaved == 0 {
			bytesPerSample := format.BitsPerChannel / 8
			format.BytesPerFrame = bytesPerSample * format.ChannelsPerFrame
			format.BytesPerPacket = format.BytesPerFrame * format.FramesPerPacket
		}
	}
	if !format.IsFloat32PCM() || format.ChannelsPerFrame == 0 || format.SampleRate <= 0 {
		return coreaudio.StreamDescription{}, fmt.Errorf("%w: %v Hz, %d ch, format %#08x",
			ErrFormatConstruction, format.SampleRate, format.ChannelsPerFrame, format.FormatID)
	}
	return format, nil
}

// ioProc runs on the real-time audio thread. It copies the first input
// buffer out of platform memory (the Base64 encode is the copy; the source
// bytes do not outlive this invocation) and appends the segment.
func (r *Recorder) ioProc(_ coreaudio.Timestamp, in coreaudio.BufferList, _ coreaudio.Timestamp, _ coreaudio.BufferList, _ coreaudio.Timestamp) {
	if len(in) == 0 || len(in[0].Data) == 0 {
		return
	}
	segment := base64.StdEncoding.EncodeToString(in[0].Data)

	r.bufMu.Lock()
	r.segments = append(r.segments, segment)
	r.bufMu.Unlock()
}

// invalidated flips the recording flag when the tap is torn down while we
// still believe we are recording, distinguishing external teardown from an
// explicit Stop.
func (r *Recorder) invalidated() {
	if r.recording.CompareAndSwap(true, false) {
		r.log.Warn().Msg("tap invalidated while recording; session stopped")
	}
}

// Stop ends the session and fully tears the tap down. No-op when not
// recording.
func (r *Recorder) Stop() {
	if !r.recording.CompareAndSwap(true, false) {
		return
	}
	r.tap.Invalidate()
	r.log.Info().Str("output", r.outputPath).Msg("recording stopped")
}

// IsRecording reports the session state. It is eventually consistent with
// respect to external invalidation.
func (r *Recorder) IsRecording() bool {
	return r.recording.Load()
}

// AudioData atomically swaps the accumulated segments for an empty buffer
// and returns them. Draining an empty buffer returns an empty slice.
func (r *Recorder) AudioData() []string {
	r.bufMu.Lock()
	segments := r.segments
	r.segments = nil
	r.bufMu.Unlock()
	if segments == nil {
		return []string{}
	}
	return segments
}

// Format returns the session format frozen at Start.
func (r *Recorder) Format() (coreaudio.StreamDescription, bool) {
	r.fmtMu.Lock()
	defer r.fmtMu.Unlock()
	return r.format, r.hasFormat
}

// OutputPath returns the WAV path identity this session was bound to.
func (r *Recorder) OutputPath() string {
	return r.outputPath
}
