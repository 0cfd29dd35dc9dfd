// Package platform is the seam where OS-specific collaborators are wired
// in. The introspection calls themselves (session enumeration, COM/WinRT
// queries, window enumeration) live outside this module; an implementation
// only has to satisfy the contracts in the playback package.
package platform

import (
	"github.com/marcus-crane/soloist/playback"
)

// NewSessionProvider returns the OS media session collaborator. The
// session provider is required for minimal operation, so a caller
// receiving ErrUnavailable should fail startup and report it upwards.
func NewSessionProvider() (playback.SessionProvider, error) {
	return nil, playback.ErrUnavailable
}

// NewAudioDetector returns the fallback audio activity collaborator.
// Optional: when unavailable, fallback detection is disabled and logged
// once, never retried.
func NewAudioDetector() (playback.AudioDetector, error) {
	return nil, playback.ErrUnavailable
}

// NewWindowTitler returns the window title resolver used by the fallback.
func NewWindowTitler() (playback.WindowTitler, error) {
	return nil, playback.ErrUnavailable
}

// NewAppCommander returns the direct app command collaborator used by the
// fallback control path.
func NewAppCommander() (playback.AppCommander, error) {
	return nil, playback.ErrUnavailable
}
