package models

import "time"

// MediaSource is one tracked playback source: either a structured OS media
// session or an app detected by the audio fallback. The JSON shape is the
// wire contract with extension clients so the field names are fixed.
type MediaSource struct {
	MediaID        string  `json:"mediaId"`
	Adapter        string  `json:"adapter"`
	AppID          string  `json:"appId"`
	Title          string  `json:"title"`
	Artist         string  `json:"artist"`
	Album          string  `json:"album"`
	Cover          string  `json:"cover"`
	Duration       float64 `json:"duration"`
	CurrentTime    float64 `json:"currentTime"`
	IsPlaying      bool    `json:"isPlaying"`
	PlaybackRate   float64 `json:"playbackRate"`
	IsDesktop      bool    `json:"isDesktop"`
	MediaType      string  `json:"mediaType"`
	ManuallyPaused bool    `json:"manuallyPaused"`

	// Internal bookkeeping, never sent over the wire
	Origin      string    `json:"-"`
	LastUpdated time.Time `json:"-"`
}

// CanonicalState is the deduplicated single-active-source view that clients
// render. ActiveMedia is nil when nothing is playing.
type CanonicalState struct {
	ActiveMedia *MediaSource  `json:"activeMedia"`
	PausedList  []MediaSource `json:"pausedList"`
}
