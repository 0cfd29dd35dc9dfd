package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetLogLevel(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, slog.LevelInfo, cfg.GetLogLevel())

	cfg.Soloist.LogLevel = "DEBUG"
	assert.Equal(t, slog.LevelDebug, cfg.GetLogLevel())

	cfg.Soloist.LogLevel = "warning"
	assert.Equal(t, slog.LevelWarn, cfg.GetLogLevel())

	cfg.Soloist.LogLevel = "error"
	assert.Equal(t, slog.LevelError, cfg.GetLogLevel())

	cfg.Soloist.LogLevel = "blah"
	assert.Equal(t, slog.LevelInfo, cfg.GetLogLevel())
}

func TestDefaults(t *testing.T) {
	cfg := SoloistConfig{}
	assert.Equal(t, "127.0.0.1:42089", cfg.Addr())
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 2*time.Second, cfg.CollaboratorTimeout())
	assert.True(t, cfg.JobsEnabled())

	cfg = SoloistConfig{
		ListenAddr:            "0.0.0.0:9000",
		PollIntervalMs:        250,
		CollaboratorTimeoutMs: 1500,
		BackgroundJobsEnabled: "false",
	}
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 1500*time.Millisecond, cfg.CollaboratorTimeout())
	assert.False(t, cfg.JobsEnabled())
}

func TestAppTable(t *testing.T) {
	cfg := FallbackConfig{}
	table := cfg.AppTable()
	assert.Equal(t, "Spotify", table["spotify.exe"])
	assert.Equal(t, "VLC", table["vlc.exe"])

	cfg.Apps = "Deezer.exe:Deezer, tidal.exe:TIDAL"
	table = cfg.AppTable()
	assert.Equal(t, map[string]string{
		"deezer.exe": "Deezer",
		"tidal.exe":  "TIDAL",
	}, table)

	// Malformed pairs are skipped rather than failing the whole table
	cfg.Apps = "deezer.exe:Deezer,garbage,:nope"
	table = cfg.AppTable()
	assert.Equal(t, map[string]string{"deezer.exe": "Deezer"}, table)
}
