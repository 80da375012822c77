// Package tap owns the lifecycle of one system-audio process tap and the
// aggregate virtual device that exposes it as a readable stream.
package tap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sparticleinc/mac-audio-capture/internal/coreaudio"
)

// ErrStreamFormatUnavailable is recorded when a created tap cannot report
// its native stream format.
var ErrStreamFormatUnavailable = errors.New("tap stream format unavailable")

// CreationError reports a failed platform resource creation or start, with
// the platform status code.
type CreationError struct {
	Resource string
	Status   coreaudio.OSStatus
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create %s failed with status %d", e.Resource, e.Status)
}

// Resource names used in CreationError.
const (
	ResourceTap       = "process tap"
	ResourceAggregate = "aggregate device"
	ResourceIOProc    = "io proc"
	ResourceStart     = "device start"
)

// Tap drives one process tap plus its backing aggregate device through
// activate / run / invalidate. Methods are not safe for concurrent use from
// multiple goroutines; the capture manager serializes lifecycle calls.
type Tap struct {
	host coreaudio.Host
	log  zerolog.Logger

	mu        sync.Mutex
	activated bool
	running   bool
	hasProc   bool
	tapID     coreaudio.ObjectID
	deviceID  coreaudio.ObjectID
	procID    coreaudio.IOProcID
	format    coreaudio.StreamDescription
	hasFormat bool
	lastErr   error

	onInvalidated func()
}

// New returns an inactive tap bound to the given platform host.
func New(host coreaudio.Host, log zerolog.Logger) *Tap {
	return &Tap{host: host, log: log.With().Str("component", "tap").Logger()}
}

// Activate creates the process tap and its aggregate device. It is a no-op
// when already activated. Failures are recorded on the instance and
// observable through LastError rather than returned; activation is polled,
// not awaited.
func (t *Tap) Activate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.activated {
		return
	}
	t.lastErr = nil

	desc := coreaudio.TapDescription{
		Name:      "mac-audio-capture tap",
		Private:   true,
		Exclusive: true,
		Muted:     false,
	}
	tapID, status := t.host.CreateProcessTap(desc)
	if !status.OK() {
		t.lastErr = &CreationError{Resource: ResourceTap, Status: status}
		t.log.Error().Int32("status", int32(status)).Msg("process tap creation failed")
		return
	}

	format, err := coreaudio.ReadTapStreamFormat(t.host, tapID)
	if err != nil {
		t.lastErr = fmt.Errorf("%w: %w", ErrStreamFormatUnavailable, err)
		t.log.Error().Err(err).Msg("tap stream format unreadable")
		t.destroyTapLocked(tapID)
		return
	}

	tapUID, err := coreaudio.ReadTapUID(t.host, tapID)
	if err != nil {
		t.lastErr = fmt.Errorf("tap uid unreadable: %w", err)
		t.log.Error().Err(err).Msg("tap uid unreadable")
		t.destroyTapLocked(tapID)
		return
	}

	deviceID, status := t.host.CreateAggregateDevice(coreaudio.AggregateDescription{
		Name:      "mac-audio-capture aggregate",
		UID:       "com.sparticleinc.mac-audio-capture:" + tapUID,
		Taps:      []coreaudio.SubTap{{UID: tapUID, DriftCompensation: true}},
		AutoStart: false,
		Private:   true,
	})
	if !status.OK() {
		t.lastErr = &CreationError{Resource: ResourceAggregate, Status: status}
		t.log.Error().Int32("status", int32(status)).Msg("aggregate device creation failed")
		t.destroyTapLocked(tapID)
		return
	}

	t.tapID = tapID
	t.deviceID = deviceID
	t.format = format
	t.hasFormat = true
	t.activated = true
	t.log.Debug().
		Uint32("tap", uint32(tapID)).
		Uint32("device", uint32(deviceID)).
		Float64("sample_rate", format.SampleRate).
		Uint32("channels", format.ChannelsPerFrame).
		Msg("tap activated")
}

// Activated reports whether the tap and aggregate device currently exist.
func (t *Tap) Activated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activated
}

// LastError returns the failure recorded by the most recent Activate, or
// nil when activation succeeded.
func (t *Tap) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// StreamFormat returns the tap's native stream format. The second return is
// false until a successful activation has queried it.
func (t *Tap) StreamFormat() (coreaudio.StreamDescription, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.format, t.hasFormat
}

// Run registers proc as the device's real-time I/O callback and starts the
// device. onInvalidated fires before teardown whenever the tap is
// invalidated, including out-of-band teardown by the platform.
//
// Calling Run on an inactive tap, or while a callback is already
// registered, is a programmer error and panics.
func (t *Tap) Run(proc coreaudio.IOProc, onInvalidated func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.activated {
		panic("tap: Run called before successful Activate")
	}
	if t.hasProc {
		panic("tap: Run called with an io proc already registered")
	}

	procID, status := t.host.CreateIOProc(t.deviceID, proc)
	if !status.OK() {
		return &CreationError{Resource: ResourceIOProc, Status: status}
	}
	t.procID = procID
	t.hasProc = true
	t.onInvalidated = onInvalidated

	if err := t.host.AddDeviceAliveListener(t.deviceID, t.deviceGone); err != nil {
		t.log.Warn().Err(err).Msg("device alive listener unavailable; external teardown will go unnoticed")
	}

	if status := t.host.StartDevice(t.deviceID, t.procID); !status.OK() {
		if ds := t.host.DestroyIOProc(t.deviceID, t.procID); !ds.OK() {
			t.log.Warn().Int32("status", int32(ds)).Msg("io proc destroy failed after start failure")
		}
		if err := t.host.RemoveDeviceAliveListener(t.deviceID); err != nil {
			t.log.Warn().Err(err).Msg("alive listener removal failed after start failure")
		}
		t.hasProc = false
		t.onInvalidated = nil
		return &CreationError{Resource: ResourceStart, Status: status}
	}
	t.running = true
	t.log.Debug().Msg("aggregate device started")
	return nil
}

// Invalidate tears down the callback, aggregate device and tap in
// reverse-of-creation order. Each step is best-effort: failures are logged
// and the remaining steps still run so a partial failure cannot leak the
// rest. No-op when not activated.
func (t *Tap) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalidateLocked()
}

func (t *Tap) invalidateLocked() {
	if !t.activated {
		return
	}

	if t.onInvalidated != nil {
		t.onInvalidated()
		t.onInvalidated = nil
	}

	if t.hasProc {
		if status := t.host.StopDevice(t.deviceID, t.procID); !status.OK() {
			t.log.Warn().Int32("status", int32(status)).Msg("device stop failed")
		}
		if status := t.host.DestroyIOProc(t.deviceID, t.procID); !status.OK() {
			t.log.Warn().Int32("status", int32(status)).Msg("io proc destroy failed")
		}
		t.hasProc = false
		t.running = false
	}

	if err := t.host.RemoveDeviceAliveListener(t.deviceID); err != nil {
		t.log.Warn().Err(err).Msg("alive listener removal failed")
	}

	if status := t.host.DestroyAggregateDevice(t.deviceID); !status.OK() {
		t.log.Warn().Int32("status", int32(status)).Msg("aggregate device destroy failed")
	}
	t.destroyTapLocked(t.tapID)

	t.tapID = coreaudio.UnknownObjectID
	t.deviceID = coreaudio.UnknownObjectID
	t.procID = 0
	t.activated = false
	t.hasFormat = false
	t.log.Debug().Msg("tap invalidated")
}

// deviceGone handles the platform tearing the aggregate device down behind
// our back (device removed, tap claimed exclusively elsewhere). It runs on
// an arbitrary platform thread.
func (t *Tap) deviceGone() {
	t.log.Warn().Msg("aggregate device went away; invalidating tap")
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invalidateLocked()
}

func (t *Tap) destroyTapLocked(tapID coreaudio.ObjectID) {
	if !tapID.IsValid() {
		return
	}
	if status := t.host.DestroyProcessTap(tapID); !status.OK() {
		t.log.Warn().Int32("status", int32(status)).Msg("process tap destroy failed")
	}
}
