package shared

// Message types must match the constants used by the browser extension.
const (
	MSG_PING              = "PING"
	MSG_PONG              = "PONG"
	MSG_GET_DESKTOP_STATE = "GET_DESKTOP_STATE"
	MSG_DESKTOP_STATE     = "DESKTOP_STATE_UPDATE"
	MSG_CONTROL           = "CONTROL"
	MSG_CONTROL_RESULT    = "CONTROL_RESULT"
	MSG_REGISTER_BROWSER  = "REGISTER_BROWSER"
	MSG_MEDIA_PLAY        = "MEDIA_PLAY"
	MSG_MEDIA_PAUSE       = "MEDIA_PAUSE"
	MSG_MEDIA_ENDED       = "MEDIA_ENDED"

	ACTION_PLAY  = "play"
	ACTION_PAUSE = "pause"
	ACTION_SKIP  = "skip"
	ACTION_PREV  = "prev"

	ADAPTER_DESKTOP  = "desktop"
	MEDIA_TYPE_AUDIO = "audio"

	ORIGIN_SYSTEM   = "system"
	ORIGIN_FALLBACK = "fallback"

	MEDIA_ID_PREFIX    = "desktop-"
	FALLBACK_ID_SUFFIX = "-fallback"
)
