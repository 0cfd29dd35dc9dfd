package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsHexIdentifier(t *testing.T) {
	assert.True(t, IsHexIdentifier("83C1C0F3FA8524B1"))
	assert.True(t, IsHexIdentifier("deadbeef"))
	assert.False(t, IsHexIdentifier("deadbee"), "7 chars is too short")
	assert.False(t, IsHexIdentifier("spotify.exe"))
	assert.False(t, IsHexIdentifier("83C1C0F3FA8524B1!"))
	assert.False(t, IsHexIdentifier(""))
}

func TestIsBrowserAppID(t *testing.T) {
	tests := []struct {
		appID      string
		registered string
		expected   bool
	}{
		{"firefox.exe", "", true},
		{"Mozilla.Firefox", "", true},
		{"msedge.exe", "", true},
		{"Microsoft.Edge_8wekyb3d8bbwe", "", true},
		{"chrome.exe", "", true},
		{"opera.exe", "", true},
		{"brave.exe", "", true},
		{"vivaldi.exe", "", true},
		{"Spotify.exe", "", false},
		{"vlc.exe", "", false},
		// Hash identifiers are assumed to be browsers
		{"83C1C0F3FA8524B1", "", true},
		// A registered browser outside the known list is still filtered
		{"zen.exe", "zen", true},
		{"zen.exe", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, IsBrowserAppID(tc.appID, tc.registered), tc.appID)
	}
}

func TestDetectBrowser(t *testing.T) {
	// The user agent wins over the self-reported name
	assert.Equal(t, "firefox", DetectBrowser("chrome", "Mozilla/5.0 (Windows NT 10.0; rv:121.0) Gecko/20100101 Firefox/121.0"))
	assert.Equal(t, "msedge", DetectBrowser("", "Mozilla/5.0 AppleWebKit/537.36 Chrome/120.0 Safari/537.36 Edg/120.0"))
	assert.Equal(t, "chrome", DetectBrowser("", "Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"))
	assert.Equal(t, "zen", DetectBrowser("Zen", ""))
	assert.Equal(t, "unknown", DetectBrowser("", ""))
}

func TestAppDisplayName(t *testing.T) {
	tests := []struct {
		appID    string
		expected string
	}{
		{"Spotify.exe", "Spotify"},
		{"com.squirrel.Spotify.Spotify", "Spotify"},
		{"vlc.exe", "VLC"},
		{"foobar2000.exe", "foobar2000"},
		{"MusicBee.exe", "MusicBee"},
		{"Microsoft.ZuneMusic_8wekyb3d8bbwe", "Zune Music"},
		{"SomePlayer.exe", "SomePlayer"},
		{"{6D809377-6AF0-444B-8957-A3773F02200E}", "Desktop App"},
		{"83C1C0F3FA8524B1", "Desktop App"},
		{"Microsoft.MediaPlayer_8wekyb3d8bbwe", "Media Player"},
		{"com.example.coolapp", "Coolapp"},
		{"", "Desktop App"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, AppDisplayName(tc.appID), tc.appID)
	}
}

func TestParseWindowTitle(t *testing.T) {
	artist, track := ParseWindowTitle("Boards of Canada - Roygbiv")
	assert.Equal(t, "Boards of Canada", artist)
	assert.Equal(t, "Roygbiv", track)

	artist, track = ParseWindowTitle("Advertisement")
	assert.Equal(t, "", artist)
	assert.Equal(t, "Advertisement", track)

	// Only the first separator splits
	artist, track = ParseWindowTitle("A - B - C")
	assert.Equal(t, "A", artist)
	assert.Equal(t, "B - C", track)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "some song", NormalizeTitle("  Some Song "))
	assert.Equal(t, "", NormalizeTitle("   "))
}
