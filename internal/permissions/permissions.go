// Package permissions preflights the system audio recording permission.
// macOS prompts for it the first time a process tap is created; probing up
// front surfaces the dialog before a session is underway instead of
// mid-capture.
package permissions

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sparticleinc/mac-audio-capture/internal/coreaudio"
)

// EnsureAudioCapture creates and immediately destroys a muted, private
// probe tap. A failed creation means the permission was denied (or the
// platform has no tap API) and capture cannot proceed.
func EnsureAudioCapture(h coreaudio.Host, log zerolog.Logger) error {
	tapID, status := h.CreateProcessTap(coreaudio.TapDescription{
		Name:    "mac-audio-capture permission probe",
		Private: true,
		Muted:   true,
	})
	if !status.OK() {
		log.Warn().Int32("status", int32(status)).Msg("audio capture permission probe failed")
		return fmt.Errorf("system audio recording not permitted (status %d): grant access under "+
			"System Settings → Privacy & Security → Screen & System Audio Recording", status)
	}
	if ds := h.DestroyProcessTap(tapID); !ds.OK() {
		log.Warn().Int32("status", int32(ds)).Msg("probe tap destroy failed")
	}
	return nil
}
