// Package capture coordinates one active tap + recorder pair behind the
// four consumer-facing operations: configure, start, stop, get-data.
package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sparticleinc/mac-audio-capture/internal/config"
	"github.com/sparticleinc/mac-audio-capture/internal/coreaudio"
	"github.com/sparticleinc/mac-audio-capture/internal/recorder"
	"github.com/sparticleinc/mac-audio-capture/internal/tap"
)

var (
	// ErrAlreadyRunning is returned by Start while a tap is already active.
	ErrAlreadyRunning = errors.New("capture already running")
	// ErrNotRunning is returned by Stop when nothing is recording.
	ErrNotRunning = errors.New("capture not running")
	// ErrNotInitialized is returned by AudioData before the first Start.
	ErrNotInitialized = errors.New("capture not initialized")
	// ErrTapNotAvailable wraps tap activation failures surfaced by Start.
	ErrTapNotAvailable = errors.New("audio tap not available")
)

// Manager owns one tap + recorder pair at a time. It is an explicit context
// object: construct one per consumer instead of sharing hidden globals, and
// serialize lifecycle calls through it.
type Manager struct {
	host    coreaudio.Host
	log     zerolog.Logger
	baseLog zerolog.Logger

	mu        sync.Mutex
	cfg       config.Config
	tap       *tap.Tap
	session   *recorder.Recorder
	lastStamp int64
}

// NewManager returns a manager using cfg until Configure replaces it.
func NewManager(host coreaudio.Host, cfg config.Config, log zerolog.Logger) *Manager {
	return &Manager{
		host:    host,
		cfg:     cfg,
		log:     log.With().Str("component", "capture").Logger(),
		baseLog: log,
	}
}

// Configure validates and adopts a new configuration. A rejected
// configuration leaves the current one in place. Configuring while a
// session runs is allowed and takes effect on the next Start.
func (m *Manager) Configure(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	m.log.Info().
		Float64("sample_rate", cfg.SampleRate).
		Int("channels", cfg.ChannelCount).
		Msg("configuration adopted")
	return nil
}

// Config returns the currently adopted configuration.
func (m *Manager) Config() config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Start creates a fresh tap + recorder pair bound to a new output identity
// and starts recording. The session format is frozen from the configuration
// adopted at this moment.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tap != nil && m.tap.Activated() {
		return ErrAlreadyRunning
	}

	t := tap.New(m.host, m.baseLog)
	session := recorder.New(t, m.cfg, m.outputPathLocked(), m.baseLog)

	if err := session.Start(); err != nil {
		activationErr := t.LastError()
		t.Invalidate()
		if activationErr != nil {
			return fmt.Errorf("%w: %w", ErrTapNotAvailable, err)
		}
		return err
	}
	m.tap = t
	m.session = session
	return nil
}

// Stop ends the active session, tearing the tap and aggregate device down.
// The drained-but-unread audio of the stopped session stays available
// through AudioData until the next Start.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || !m.session.IsRecording() {
		return ErrNotRunning
	}
	m.session.Stop()
	return nil
}

// AudioData drains the session buffer. It never fails once a session
// exists; an idle session yields an empty slice.
func (m *Manager) AudioData() ([]string, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return nil, ErrNotInitialized
	}
	return session.AudioData(), nil
}

// Session returns the current recorder, or nil before the first Start. The
// façade uses it to reach the frozen session format and output identity.
func (m *Manager) Session() *recorder.Recorder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Reset stops any active session and drops the tap + recorder pair.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && m.session.IsRecording() {
		m.session.Stop()
	}
	if m.tap != nil {
		m.tap.Invalidate()
	}
	m.tap = nil
	m.session = nil
}

// outputPathLocked derives a new output file identity. Timestamps are
// forced strictly monotonic so rapid start/stop cycles within one process
// cannot collide.
func (m *Manager) outputPathLocked() string {
	stamp := time.Now().UnixNano()
	if stamp <= m.lastStamp {
		stamp = m.lastStamp + 1
	}
	m.lastStamp = stamp

	dir := m.cfg.OutputDir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("capture-%d.wav", stamp))
}
