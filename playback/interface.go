package playback

import (
	"context"
	"errors"

	"github.com/marcus-crane/soloist/models"
)

type Status string

const (
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

var (
	// ErrUnavailable means a platform collaborator is missing entirely.
	// Dependent functionality is disabled once at startup, never retried.
	ErrUnavailable = errors.New("collaborator unavailable")
	// ErrSessionNotFound means a control command addressed a source that
	// is no longer tracked.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCommandFailed means a control command was dispatched but the
	// collaborator reported failure or timed out.
	ErrCommandFailed = errors.New("command failed")
)

// RawSource is a single observation handed to the engine by the OS media
// collaborator. AppID is the raw application identifier as reported by the
// OS, not a display name.
type RawSource struct {
	AppID        string
	Title        string
	Artist       string
	Album        string
	Cover        string // data URL, may be empty
	Position     float64
	Duration     float64
	Status       Status
	PlaybackRate float64
}

// SessionProvider enumerates OS media sessions and executes transport
// commands against them. Every call may block on OS machinery so callers
// bound them with timeouts and run them off the coordination goroutine.
type SessionProvider interface {
	Enumerate(ctx context.Context) ([]RawSource, error)
	Control(ctx context.Context, appID string, action string) error
}

// AudioApp is one audio session seen by the fallback detector. MeterPeak
// is negative when the platform offers no metering for the session.
type AudioApp struct {
	ProcessName string
	Volume      float64
	Muted       bool
	MeterPeak   float64
}

// AudioDetector reports apps currently emitting audio, for apps that
// expose no structured session metadata.
type AudioDetector interface {
	ListAudibleApps(ctx context.Context) ([]AudioApp, error)
}

// WindowTitler resolves a window title for a process. Implementations cache
// window handles and re-enumerate when the cached handle goes stale.
type WindowTitler interface {
	ResolveTitle(ctx context.Context, processName string) (string, error)
}

// AppCommander sends discrete transport commands to an app outside the
// media session API, e.g. via window messages.
type AppCommander interface {
	SendCommand(ctx context.Context, processName string, action string) error
}

// TransitionRecorder persists track transitions for the history endpoint.
type TransitionRecorder interface {
	RecordTransition(src models.MediaSource) error
}
