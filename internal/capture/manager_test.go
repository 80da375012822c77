package capture

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sparticleinc/mac-audio-capture/internal/config"
	"github.com/sparticleinc/mac-audio-capture/internal/coreaudio"
	"github.com/sparticleinc/mac-audio-capture/internal/coreaudio/coreaudiotest"
)

func nativeFormat() coreaudio.StreamDescription {
	return coreaudio.StreamDescription{
		SampleRate:       44100,
		FormatID:         coreaudio.FormatLinearPCM,
		FormatFlags:      coreaudio.FormatFlagIsFloat | coreaudio.FormatFlagIsPacked,
		BytesPerPacket:   8,
		FramesPerPacket:  1,
		BytesPerFrame:    8,
		ChannelsPerFrame: 2,
		BitsPerChannel:   32,
	}
}

func newManager(tb testing.TB) (*Manager, *coreaudiotest.Host) {
	tb.Helper()
	host := &coreaudiotest.Host{}
	host.InstallDefaultTapFormat(nativeFormat())
	cfg := config.Config{SampleRate: 48000, ChannelCount: 2, OutputDir: tb.TempDir()}
	return NewManager(host, cfg, zerolog.Nop()), host
}

func TestStopOnFreshManager(t *testing.T) {
	mgr, _ := newManager(t)

	if err := mgr.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestAudioDataOnFreshManager(t *testing.T) {
	mgr, _ := newManager(t)

	if _, err := mgr.AudioData(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestDoubleStart(t *testing.T) {
	mgr, _ := newManager(t)

	if err := mgr.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := mgr.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestConfigureInvalidRetainsPrior(t *testing.T) {
	mgr, _ := newManager(t)

	prior := config.Config{SampleRate: 48000, ChannelCount: 2}
	if err := mgr.Configure(prior); err != nil {
		t.Fatalf("unexpected configure error: %v", err)
	}

	err := mgr.Configure(config.Config{SampleRate: -1, ChannelCount: 2})
	if !errors.Is(err, config.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	err = mgr.Configure(config.Config{SampleRate: 48000, ChannelCount: 0})
	if !errors.Is(err, config.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}

	got := mgr.Config()
	if got.SampleRate != prior.SampleRate || got.ChannelCount != prior.ChannelCount {
		t.Fatalf("expected prior configuration retained, got %+v", got)
	}
}

func TestStartActivationFailure(t *testing.T) {
	mgr, host := newManager(t)
	host.CreateTapStatus = -50

	err := mgr.Start()
	if !errors.Is(err, ErrTapNotAvailable) {
		t.Fatalf("expected ErrTapNotAvailable, got %v", err)
	}
	if err := mgr.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected manager to stay not-running, got %v", err)
	}
}

func TestStartStopStart(t *testing.T) {
	mgr, _ := newManager(t)

	if err := mgr.Start(); err != nil {
		t.Fatalf("first start: %v", err)
	}
	first := mgr.Session().OutputPath()

	if err := mgr.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := mgr.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	second := mgr.Session().OutputPath()

	if first == second {
		t.Fatalf("expected distinct output identities, both were %s", first)
	}
}

func TestAudioDataFlow(t *testing.T) {
	mgr, host := newManager(t)

	if err := mgr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	host.InvokeIOProc([]byte{1, 2, 3, 4}, 2)
	host.InvokeIOProc([]byte{5, 6, 7, 8}, 2)

	segments, err := mgr.AudioData()
	if err != nil {
		t.Fatalf("audio data: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}

	segments, err = mgr.AudioData()
	if err != nil {
		t.Fatalf("audio data: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected drained buffer, got %d segments", len(segments))
	}
}

func TestConfigureWhileRunningAppliesNextStart(t *testing.T) {
	mgr, _ := newManager(t)

	if err := mgr.Configure(config.Config{SampleRate: 44100, ChannelCount: 2}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := mgr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := mgr.Configure(config.Config{SampleRate: 48000, ChannelCount: 1}); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}

	format, _ := mgr.Session().Format()
	if format.SampleRate != 44100 || format.ChannelsPerFrame != 2 {
		t.Fatalf("running session format must stay frozen, got %+v", format)
	}

	if err := mgr.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := mgr.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}

	format, _ = mgr.Session().Format()
	if format.SampleRate != 48000 || format.ChannelsPerFrame != 1 {
		t.Fatalf("expected new configuration on next start, got %+v", format)
	}
}

func TestExternalInvalidationAllowsRestart(t *testing.T) {
	mgr, host := newManager(t)

	if err := mgr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	host.TriggerDeviceGone()

	if mgr.Session().IsRecording() {
		t.Fatal("expected session stopped by external invalidation")
	}
	if err := mgr.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after external teardown, got %v", err)
	}
	if err := mgr.Start(); err != nil {
		t.Fatalf("expected restart after external teardown, got %v", err)
	}
}

func TestReset(t *testing.T) {
	mgr, host := newManager(t)

	if err := mgr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	mgr.Reset()

	if mgr.Session() != nil {
		t.Fatal("expected session dropped by reset")
	}
	if host.TapsDestroyed != 1 {
		t.Fatalf("expected teardown on reset, got %d destroys", host.TapsDestroyed)
	}
	if _, err := mgr.AudioData(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized after reset, got %v", err)
	}
}
