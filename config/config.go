package config

import (
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	Soloist  SoloistConfig
	Fallback FallbackConfig
}

type SoloistConfig struct {
	ListenAddr            string `env:"LISTEN_ADDR"`
	DbPath                string `env:"DB_PATH"`
	LogLevel              string `env:"LOG_LEVEL"`
	PollIntervalMs        int    `env:"POLL_INTERVAL_MS"`
	CollaboratorTimeoutMs int    `env:"COLLABORATOR_TIMEOUT_MS"`
	BackgroundJobsEnabled string `env:"BACKGROUND_JOBS_ENABLED"`
}

type FallbackConfig struct {
	// Comma separated process:display pairs, e.g. "spotify.exe:Spotify,vlc.exe:VLC"
	Apps string `env:"FALLBACK_APPS"`
}

func (c *Config) GetLogLevel() slog.Leveler {
	logLevel := strings.ToLower(c.Soloist.LogLevel)
	if logLevel == "error" {
		return slog.LevelError
	}
	if logLevel == "warning" {
		return slog.LevelWarn
	}
	if logLevel == "info" {
		return slog.LevelInfo
	}
	if logLevel == "debug" {
		return slog.LevelDebug
	}
	// default to info if unknown
	slog.With(slog.String("log_level", logLevel)).Info("Received invalid log level. Defaulting to INFO.")
	return slog.LevelInfo
}

func (c *SoloistConfig) Addr() string {
	if c.ListenAddr == "" {
		return "127.0.0.1:42089"
	}
	return c.ListenAddr
}

// PollInterval is how often sources are reconciled. Polling is deliberate:
// OS push notifications for media sessions are unreliable in practice.
func (c *SoloistConfig) PollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *SoloistConfig) CollaboratorTimeout() time.Duration {
	if c.CollaboratorTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.CollaboratorTimeoutMs) * time.Millisecond
}

func (c *SoloistConfig) JobsEnabled() bool {
	return c.BackgroundJobsEnabled != "false"
}

// AppTable maps process names to display names for apps that should be
// watched by the audio fallback because they bypass the media session API.
func (c *FallbackConfig) AppTable() map[string]string {
	if strings.TrimSpace(c.Apps) == "" {
		return map[string]string{
			"spotify.exe":    "Spotify",
			"vlc.exe":        "VLC",
			"foobar2000.exe": "foobar2000",
			"musicbee.exe":   "MusicBee",
			"winamp.exe":     "Winamp",
			"aimp.exe":       "AIMP",
		}
	}
	table := make(map[string]string)
	for _, pair := range strings.Split(c.Apps, ",") {
		proc, display, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found || proc == "" || display == "" {
			continue
		}
		table[strings.ToLower(proc)] = display
	}
	return table
}
