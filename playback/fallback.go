package playback

import (
	"context"
	"log/slog"
	"strings"

	"github.com/marcus-crane/soloist/models"
	"github.com/marcus-crane/soloist/shared"
)

// Audio meter levels above this count as audible.
const meterThreshold = 0.001

// FallbackMonitor watches a configured table of apps that play audio
// without registering a media session, synthesising records for them so
// they participate in dedup and the pause cascade like any other source.
type FallbackMonitor struct {
	detector  AudioDetector
	titler    WindowTitler
	commander AppCommander
	apps      map[string]string // lowercased process name -> display name
}

func NewFallbackMonitor(detector AudioDetector, titler WindowTitler, commander AppCommander, apps map[string]string) *FallbackMonitor {
	table := make(map[string]string, len(apps))
	for process, display := range apps {
		table[strings.ToLower(process)] = display
	}
	return &FallbackMonitor{
		detector:  detector,
		titler:    titler,
		commander: commander,
		apps:      table,
	}
}

// FallbackID is the synthetic media id for a watched process, e.g.
// "desktop-spotify-fallback" for spotify.exe.
func FallbackID(process string) string {
	base := strings.TrimSuffix(strings.ToLower(process), ".exe")
	return shared.MEDIA_ID_PREFIX + base + shared.FALLBACK_ID_SUFFIX
}

func (m *FallbackMonitor) processFor(mediaID string) (string, bool) {
	for process := range m.apps {
		if FallbackID(process) == mediaID {
			return process, true
		}
	}
	return "", false
}

func (m *FallbackMonitor) isAudible(app AudioApp) bool {
	if app.MeterPeak >= 0 {
		return app.MeterPeak > meterThreshold
	}
	// No metering available for this session
	return !app.Muted && app.Volume > 0
}

// fallbackPassLocked runs the per-app fallback lifecycle after the regular
// reconciliation. records is this tick's raw enumeration, used both to
// detect a system takeover and to opportunistically borrow progress.
func (e *Engine) fallbackPassLocked(ctx context.Context, records []RawSource) bool {
	audible, err := e.listAudibleApps(ctx)
	if err != nil {
		slog.Error("Audio fallback check failed", slog.String("stack", err.Error()))
		return false
	}

	byProcess := make(map[string]AudioApp, len(audible))
	for _, app := range audible {
		byProcess[strings.ToLower(app.ProcessName)] = app
	}

	changed := false
	for process, display := range e.fallback.apps {
		if e.updateFallbackApp(ctx, process, display, byProcess, records) {
			changed = true
		}
	}
	return changed
}

func (e *Engine) updateFallbackApp(ctx context.Context, process, display string, audible map[string]AudioApp, records []RawSource) bool {
	id := FallbackID(process)
	now := e.clock.Now()

	// A system-origin record for the same app supersedes the fallback.
	if e.hasSystemRecordLocked(display) {
		if _, ok := e.sources[id]; ok {
			slog.Debug("Removing fallback, session API detection took over",
				slog.String("media_id", id),
			)
			e.removeSourceLocked(id)
			return true
		}
		return false
	}

	app, seen := audible[strings.ToLower(process)]
	if !seen || !e.fallback.isAudible(app) {
		// Audio stopped and nothing took over: the synthetic record
		// has no further lifecycle and is dropped.
		if _, ok := e.sources[id]; ok {
			slog.Info("Removing fallback, audio activity stopped", slog.String("media_id", id))
			e.removeSourceLocked(id)
			return true
		}
		return false
	}

	artist, title := e.resolveFallbackTitle(ctx, process, display)
	position, duration := borrowProgress(records, process)

	old, exists := e.sources[id]
	if exists && old.Title == title {
		wasPaused := !old.IsPlaying
		if duration > 0 {
			old.CurrentTime = position
			old.Duration = duration
		}
		old.IsPlaying = true
		if wasPaused {
			old.LastUpdated = now
			slog.Info("Fallback resumed playing",
				slog.String("media_id", id),
				slog.String("title", title),
			)
			if count := e.pauseAllExceptLocked(ctx, id); count > 0 {
				slog.Info("Paused other media sessions",
					slog.String("media_id", id),
					slog.Int("count", count),
				)
			}
			return true
		}
		return false
	}

	info := &models.MediaSource{
		MediaID:      id,
		Adapter:      shared.ADAPTER_DESKTOP,
		AppID:        display,
		Title:        title,
		Artist:       artist,
		CurrentTime:  position,
		Duration:     duration,
		IsPlaying:    true,
		PlaybackRate: 1.0,
		IsDesktop:    true,
		MediaType:    shared.MEDIA_TYPE_AUDIO,
		Origin:       shared.ORIGIN_FALLBACK,
		LastUpdated:  now,
	}
	if !exists {
		e.order = append(e.order, id)
	}
	e.sources[id] = info
	if duration > 0 {
		slog.Info("App detected via audio fallback",
			slog.String("media_id", id),
			slog.String("title", title),
			slog.Float64("position", position),
			slog.Float64("duration", duration),
		)
	} else {
		slog.Info("App detected via audio fallback, no progress available",
			slog.String("media_id", id),
			slog.String("title", title),
		)
	}
	if count := e.pauseAllExceptLocked(ctx, id); count > 0 {
		slog.Info("Paused other media sessions",
			slog.String("media_id", id),
			slog.Int("count", count),
		)
	}
	e.recordTransition(info, old)
	return true
}

// hasSystemRecordLocked reports whether a system-origin canonical record
// already represents the given app.
func (e *Engine) hasSystemRecordLocked(display string) bool {
	for _, info := range e.sources {
		if info.Origin == shared.ORIGIN_SYSTEM && strings.EqualFold(info.AppID, display) {
			return true
		}
	}
	return false
}

func (e *Engine) removeSourceLocked(id string) {
	delete(e.sources, id)
	for i, existing := range e.order {
		if existing == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// resolveFallbackTitle asks the window titler for the current track,
// falling back to the display name when no window title is available.
func (e *Engine) resolveFallbackTitle(ctx context.Context, process, display string) (artist, title string) {
	raw, err := e.resolveTitle(ctx, process)
	if err != nil || strings.TrimSpace(raw) == "" {
		if err != nil {
			slog.Debug("Could not resolve window title",
				slog.String("process", process),
				slog.String("stack", err.Error()),
			)
		}
		return "", display
	}
	artist, track := ParseWindowTitle(raw)
	if artist == "" {
		return "", track
	}
	return artist, artist + " - " + track
}

// borrowProgress takes position and duration from a transient system
// record for the same app if the latest enumeration carried one. A zero
// duration means "no progress available", not stale data.
func borrowProgress(records []RawSource, process string) (position, duration float64) {
	base := strings.TrimSuffix(strings.ToLower(process), ".exe")
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.AppID), base) && rec.Duration > 0 {
			return rec.Position, rec.Duration
		}
	}
	return 0, 0
}

func (e *Engine) listAudibleApps(ctx context.Context) ([]AudioApp, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	var apps []AudioApp
	err := e.pool.Run(cctx, func() error {
		var innerErr error
		apps, innerErr = e.fallback.detector.ListAudibleApps(cctx)
		return innerErr
	})
	return apps, err
}

func (e *Engine) resolveTitle(ctx context.Context, process string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	var title string
	err := e.pool.Run(cctx, func() error {
		var innerErr error
		title, innerErr = e.fallback.titler.ResolveTitle(cctx, process)
		return innerErr
	})
	return title, err
}

func (e *Engine) sendFallbackCommand(ctx context.Context, process, action string) error {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.pool.Run(cctx, func() error {
		return e.fallback.commander.SendCommand(cctx, process, action)
	})
}
