package models

import "encoding/json"

// Envelope is the outer shape of every message on the sync connection.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ControlRequest struct {
	Action  string `json:"action"`
	MediaID string `json:"mediaId"`
}

type ControlResult struct {
	Action  string `json:"action"`
	MediaID string `json:"mediaId"`
	Success bool   `json:"success"`
}

// BrowserRegistration identifies the browser hosting the extension. The
// user agent is free-form and parsed on a best effort basis.
type BrowserRegistration struct {
	Browser   string `json:"browser"`
	UserAgent string `json:"userAgent"`
}

// BrowserMediaEvent reports playback activity inside the browser itself.
type BrowserMediaEvent struct {
	Title string `json:"title"`
}
