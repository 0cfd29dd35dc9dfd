package playback

import (
	"strings"
	"unicode"
)

// Known browser identifiers. Matched as substrings of the lowercased app id
// so both "firefox.exe" and "mozilla.firefox" style identifiers hit.
var browserAppIDs = []string{
	"firefox",
	"chrome",
	"msedge",
	"microsoft.edge",
	"opera",
	"brave",
	"vivaldi",
}

// Known app id fragments mapped to friendly display names. Ordered so that
// lookups are deterministic.
var knownApps = []struct {
	match string
	name  string
}{
	{"spotify", "Spotify"},
	{"musicbee", "MusicBee"},
	{"foobar2000", "foobar2000"},
	{"vlc", "VLC"},
	{"itunes", "iTunes"},
	{"winamp", "Winamp"},
	{"aimp", "AIMP"},
	{"groove", "Groove Music"},
	{"amazon music", "Amazon Music"},
	{"deezer", "Deezer"},
	{"tidal", "TIDAL"},
	{"youtube music", "YouTube Music"},
	{"chrome", "Chrome"},
	{"firefox", "Firefox"},
	{"msedge", "Edge"},
	{"opera", "Opera"},
}

// NormalizeTitle lowercases and trims a title for identity comparison.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// IsHexIdentifier reports whether s is 8+ characters of pure hex. Browsers
// on Windows often register media sessions under such hashes instead of a
// readable app id, e.g. "83C1C0F3FA8524B1".
func IsHexIdentifier(s string) bool {
	if len(s) < 8 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// IsBrowserAppID reports whether an app identifier belongs to a browser,
// whose OS sessions are dropped because the extension reports browser
// playback directly. registeredBrowser may be empty.
func IsBrowserAppID(appID, registeredBrowser string) bool {
	if appID == "" {
		return false
	}
	lower := strings.ToLower(appID)
	if registeredBrowser != "" && strings.Contains(lower, registeredBrowser) {
		return true
	}
	for _, browser := range browserAppIDs {
		if strings.Contains(lower, browser) {
			return true
		}
	}
	return IsHexIdentifier(appID)
}

// DetectBrowser derives a browser identity from a registration message.
// The user agent wins over the self-reported name because extensions have
// historically sent the wrong one.
func DetectBrowser(browser, userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "firefox"):
		return "firefox"
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge"):
		return "msedge"
	case strings.Contains(ua, "chrome"):
		return "chrome"
	case strings.Contains(ua, "opera"):
		return "opera"
	case strings.Contains(ua, "brave"):
		return "brave"
	}
	if b := strings.ToLower(strings.TrimSpace(browser)); b != "" {
		return b
	}
	return "unknown"
}

// AppDisplayName derives a friendly name from a raw app identifier.
// Handles "Spotify.exe", "com.squirrel.Spotify.Spotify",
// "Microsoft.ZuneMusic_8wekyb..." and GUID/hash identifiers.
func AppDisplayName(appID string) string {
	if appID == "" {
		return "Desktop App"
	}

	lower := strings.ToLower(appID)
	for _, app := range knownApps {
		if strings.Contains(lower, app.match) {
			return app.name
		}
	}

	clean := strings.ReplaceAll(strings.ReplaceAll(appID, ".exe", ""), ".EXE", "")

	if strings.Contains(lower, ".exe") {
		parts := strings.Split(clean, ".")
		if last := parts[len(parts)-1]; last != "" {
			return last
		}
	}

	if strings.HasPrefix(clean, "{") || IsHexIdentifier(clean) {
		return "Desktop App"
	}

	// Store apps: Microsoft.ZuneMusic_xxx -> "Zune Music"
	if strings.HasPrefix(clean, "Microsoft.") {
		base, _, _ := strings.Cut(strings.TrimPrefix(clean, "Microsoft."), "_")
		var b strings.Builder
		for _, r := range base {
			if unicode.IsUpper(r) && b.Len() > 0 {
				b.WriteRune(' ')
			}
			b.WriteRune(r)
		}
		if b.Len() > 0 {
			return b.String()
		}
		return "Desktop App"
	}

	parts := strings.Split(clean, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		switch strings.ToLower(part) {
		case "", "exe", "com", "app", "squirrel":
			continue
		}
		if part == strings.ToLower(part) {
			return strings.ToUpper(part[:1]) + part[1:]
		}
		return part
	}

	return "Desktop App"
}

// ParseWindowTitle splits an "Artist - Track" shaped window title. Artist
// is empty when the title has no separator.
func ParseWindowTitle(title string) (artist, track string) {
	if before, after, found := strings.Cut(title, " - "); found {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return "", strings.TrimSpace(title)
}
