package playback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/marcus-crane/soloist/models"
	"github.com/marcus-crane/soloist/shared"
)

const (
	// A non-playing source untouched for longer than this is pruned so
	// ended media doesn't sit in the paused list forever.
	staleTimeout = 30 * time.Second
	// Sources within this many seconds of their reported duration are
	// treated as ended even if the OS still says playing. Some apps don't
	// update playback status promptly at track end.
	endOfTrackTolerance = 2.0
)

// Engine merges raw session observations into a deduplicated canonical
// state and enforces that at most one source plays at a time. All mutation
// runs under a single mutex so the pause cascade is never observed half
// applied.
type Engine struct {
	clock    clockwork.Clock
	provider SessionProvider
	fallback *FallbackMonitor
	history  TransitionRecorder
	pool     *Pool
	timeout  time.Duration

	mu                sync.Mutex
	sources           map[string]*models.MediaSource
	order             []string // discovery order of ids
	browserTitles     map[string]struct{}
	registeredBrowser string
}

type Options struct {
	Clock       clockwork.Clock
	History     TransitionRecorder
	CallTimeout time.Duration
	Workers     int
}

func NewEngine(provider SessionProvider, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 2 * time.Second
	}
	return &Engine{
		clock:         opts.Clock,
		provider:      provider,
		history:       opts.History,
		pool:          NewPool(opts.Workers),
		timeout:       opts.CallTimeout,
		sources:       make(map[string]*models.MediaSource),
		browserTitles: make(map[string]struct{}),
	}
}

// AttachFallback enables the audio fallback pass for apps that bypass the
// media session API.
func (e *Engine) AttachFallback(monitor *FallbackMonitor) {
	e.fallback = monitor
}

// Close waits for any in-flight tick to finish and releases the worker
// pool. Safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	e.mu.Unlock()
	e.pool.Close()
}

// Tick enumerates the OS sessions, reconciles them into canonical state
// and runs the fallback pass. A failed enumeration is a soft failure: the
// previous state is kept and the next tick retries.
func (e *Engine) Tick(ctx context.Context) (bool, models.CanonicalState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.enumerate(ctx)
	if err != nil {
		slog.Error("Failed to enumerate media sources", slog.String("stack", err.Error()))
		return false, e.stateLocked()
	}

	changed := e.reconcileLocked(ctx, records)
	if e.fallback != nil {
		if e.fallbackPassLocked(ctx, records) {
			changed = true
		}
	}
	return changed, e.stateLocked()
}

// Reconcile folds a batch of raw observations into canonical state,
// reporting whether anything meaningful changed. Exposed separately from
// Tick so the diffing logic is testable without a session provider.
func (e *Engine) Reconcile(ctx context.Context, records []RawSource) (bool, models.CanonicalState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed := e.reconcileLocked(ctx, records)
	return changed, e.stateLocked()
}

// State returns the deduplicated canonical view. Calling it twice with no
// intervening tick yields identical output.
func (e *Engine) State() models.CanonicalState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// PauseAllExcept pauses every playing source other than exceptID, which
// may be empty to pause everything. Returns how many sources were paused.
func (e *Engine) PauseAllExcept(ctx context.Context, exceptID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauseAllExceptLocked(ctx, exceptID)
}

// HandleControl dispatches a client control command to the addressed
// source. Fallback sources route through the app commander.
func (e *Engine) HandleControl(ctx context.Context, action, mediaID string) error {
	switch action {
	case shared.ACTION_PLAY, shared.ACTION_PAUSE, shared.ACTION_SKIP, shared.ACTION_PREV:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrCommandFailed, action)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	slog.Info("Handling control command",
		slog.String("action", action),
		slog.String("media_id", mediaID),
	)

	if err := e.controlLocked(ctx, action, mediaID); err != nil {
		return err
	}

	// The OS takes a moment to report the effect, so reflect commands we
	// know succeeded straight away.
	if info, ok := e.sources[mediaID]; ok {
		switch action {
		case shared.ACTION_PAUSE:
			info.IsPlaying = false
			info.ManuallyPaused = true
			info.LastUpdated = e.clock.Now()
		case shared.ACTION_PLAY:
			info.IsPlaying = true
			info.ManuallyPaused = false
			info.LastUpdated = e.clock.Now()
			e.pauseAllExceptLocked(ctx, mediaID)
		}
	}
	return nil
}

// RegisterBrowser records the identity of the client's host browser, used
// by the classifier to drop the browser's own OS sessions.
func (e *Engine) RegisterBrowser(browser, userAgent string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registeredBrowser = DetectBrowser(browser, userAgent)
	slog.Info("Registered browser", slog.String("browser", e.registeredBrowser))
}

// UpdateBrowserMedia tracks titles currently playing inside the browser so
// a browser session leaking through the app id filter is still suppressed.
func (e *Engine) UpdateBrowserMedia(title string, playing bool) {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if playing {
		e.browserTitles[normalized] = struct{}{}
		slog.Debug("Browser media added", slog.String("title", normalized))
	} else if _, ok := e.browserTitles[normalized]; ok {
		delete(e.browserTitles, normalized)
		slog.Debug("Browser media removed", slog.String("title", normalized))
	}
}

func (e *Engine) enumerate(ctx context.Context) ([]RawSource, error) {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	var records []RawSource
	err := e.pool.Run(cctx, func() error {
		var innerErr error
		records, innerErr = e.provider.Enumerate(cctx)
		return innerErr
	})
	return records, err
}

func (e *Engine) reconcileLocked(ctx context.Context, records []RawSource) bool {
	changed := false
	now := e.clock.Now()
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if IsBrowserAppID(rec.AppID, e.registeredBrowser) {
			continue
		}
		info := e.buildSource(rec, now)
		if e.isBrowserReportedTitle(rec.Title, info.Title) {
			slog.Debug("Suppressing browser-reported title", slog.String("title", info.Title))
			continue
		}

		id := info.MediaID
		seen[id] = struct{}{}

		old, exists := e.sources[id]
		if exists {
			titleChanged := old.Title != info.Title
			playingChanged := old.IsPlaying != info.IsPlaying
			durationChanged := math.Abs(old.Duration-info.Duration) > 1
			positionJump := math.Abs(info.CurrentTime-old.CurrentTime) > 10

			if titleChanged || playingChanged || durationChanged || positionJump {
				changed = true
				slog.Info("Media changed",
					slog.String("media_id", id),
					slog.Bool("title", titleChanged),
					slog.Bool("playing", playingChanged),
					slog.Bool("duration", durationChanged),
					slog.Bool("jump", positionJump),
				)
			} else {
				// Untouched: keep the previous timestamp so the
				// stale sweep can eventually reclaim it.
				info.LastUpdated = old.LastUpdated
			}

			if playingChanged && info.IsPlaying {
				e.sources[id] = info
				if count := e.pauseAllExceptLocked(ctx, id); count > 0 {
					slog.Info("Paused other media sessions",
						slog.String("media_id", id),
						slog.Int("count", count),
					)
				}
			}
			e.recordTransition(info, old)
		} else {
			changed = true
			e.order = append(e.order, id)
			slog.Info("New media session",
				slog.String("media_id", id),
				slog.String("title", info.Title),
			)
			if info.IsPlaying {
				e.sources[id] = info
				if count := e.pauseAllExceptLocked(ctx, id); count > 0 {
					slog.Info("Paused other media sessions",
						slog.String("media_id", id),
						slog.Int("count", count),
					)
				}
			}
			e.recordTransition(info, nil)
		}
		e.sources[id] = info
	}

	if e.pruneLocked(seen, now) {
		changed = true
	}
	return changed
}

// pruneLocked drops ids absent from the latest enumeration and non-playing
// ids that have gone untouched past the stale timeout. Fallback entries
// are managed by their own lifecycle and left alone.
func (e *Engine) pruneLocked(seen map[string]struct{}, now time.Time) bool {
	changed := false
	kept := e.order[:0]
	for _, id := range e.order {
		info, ok := e.sources[id]
		if !ok {
			changed = true
			continue
		}
		if info.Origin == shared.ORIGIN_FALLBACK {
			kept = append(kept, id)
			continue
		}
		if _, present := seen[id]; !present {
			slog.Info("Removing stale session", slog.String("media_id", id))
			delete(e.sources, id)
			changed = true
			continue
		}
		if !info.IsPlaying && now.Sub(info.LastUpdated) > staleTimeout {
			slog.Info("Removing stopped session after timeout",
				slog.String("media_id", id),
				slog.String("title", info.Title),
			)
			delete(e.sources, id)
			changed = true
			continue
		}
		kept = append(kept, id)
	}
	e.order = kept
	return changed
}

func (e *Engine) buildSource(rec RawSource, now time.Time) *models.MediaSource {
	info := &models.MediaSource{
		MediaID:        shared.MEDIA_ID_PREFIX + rec.AppID,
		Adapter:        shared.ADAPTER_DESKTOP,
		AppID:          AppDisplayName(rec.AppID),
		Title:          rec.Title,
		Artist:         rec.Artist,
		Album:          rec.Album,
		Cover:          rec.Cover,
		Duration:       rec.Duration,
		CurrentTime:    rec.Position,
		IsPlaying:      rec.Status == StatusPlaying,
		PlaybackRate:   rec.PlaybackRate,
		IsDesktop:      true,
		MediaType:      shared.MEDIA_TYPE_AUDIO,
		ManuallyPaused: rec.Status == StatusPaused,
		Origin:         shared.ORIGIN_SYSTEM,
		LastUpdated:    now,
	}
	if info.PlaybackRate == 0 {
		info.PlaybackRate = 1.0
	}
	if info.Title == "" {
		info.Title = info.AppID
	}
	if info.Artist != "" {
		info.Title = info.Artist + " - " + info.Title
	}
	if info.Duration > 0 && info.CurrentTime > 0 && info.CurrentTime >= info.Duration-endOfTrackTolerance {
		info.IsPlaying = false
		info.ManuallyPaused = false
		slog.Debug("Media reached end of track",
			slog.String("media_id", info.MediaID),
			slog.Float64("position", info.CurrentTime),
			slog.Float64("duration", info.Duration),
		)
	}
	return info
}

func (e *Engine) isBrowserReportedTitle(titles ...string) bool {
	if len(e.browserTitles) == 0 {
		return false
	}
	for _, title := range titles {
		if title == "" {
			continue
		}
		if _, ok := e.browserTitles[NormalizeTitle(title)]; ok {
			return true
		}
	}
	return false
}

func (e *Engine) pauseAllExceptLocked(ctx context.Context, exceptID string) int {
	count := 0
	for _, id := range e.order {
		info, ok := e.sources[id]
		if !ok || !info.IsPlaying || id == exceptID {
			continue
		}
		if err := e.controlLocked(ctx, shared.ACTION_PAUSE, id); err != nil {
			slog.Error("Failed to pause session",
				slog.String("media_id", id),
				slog.String("stack", err.Error()),
			)
			continue
		}
		info.IsPlaying = false
		info.ManuallyPaused = false
		info.LastUpdated = e.clock.Now()
		count++
	}
	return count
}

func (e *Engine) controlLocked(ctx context.Context, action, mediaID string) error {
	if e.fallback != nil && strings.HasSuffix(mediaID, shared.FALLBACK_ID_SUFFIX) {
		process, ok := e.fallback.processFor(mediaID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, mediaID)
		}
		if err := e.sendFallbackCommand(ctx, process, action); err != nil {
			return fmt.Errorf("%w: %s on %s: %v", ErrCommandFailed, action, mediaID, err)
		}
		return nil
	}
	if _, ok := e.sources[mediaID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, mediaID)
	}
	appID := strings.TrimPrefix(mediaID, shared.MEDIA_ID_PREFIX)
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	err := e.pool.Run(cctx, func() error {
		return e.provider.Control(cctx, appID, action)
	})
	if err != nil {
		return fmt.Errorf("%w: %s on %s: %v", ErrCommandFailed, action, mediaID, err)
	}
	return nil
}

func (e *Engine) recordTransition(info, old *models.MediaSource) {
	if e.history == nil || !info.IsPlaying {
		return
	}
	if old != nil && old.Title == info.Title {
		return
	}
	if err := e.history.RecordTransition(*info); err != nil {
		slog.Error("Failed to save history entry",
			slog.String("title", info.Title),
			slog.String("stack", err.Error()),
		)
	}
}

// stateLocked performs dedup at read time, independent of the mutation
// path, walking entries in discovery order.
func (e *Engine) stateLocked() models.CanonicalState {
	seenIDs := make(map[string]struct{})
	keyIndex := make(map[string]int)
	var entries []models.MediaSource

	for _, id := range e.order {
		info, ok := e.sources[id]
		if !ok {
			continue
		}
		// Defensive double-check against duplicate ids
		if _, dup := seenIDs[info.MediaID]; dup {
			slog.Debug("Skipping duplicate media id", slog.String("media_id", info.MediaID))
			continue
		}
		seenIDs[info.MediaID] = struct{}{}

		key := dedupKey(info)
		if i, dup := keyIndex[key]; dup {
			// The same real app can surface via both origins; a
			// system observation wins over a fallback one.
			if entries[i].Origin == shared.ORIGIN_FALLBACK && info.Origin == shared.ORIGIN_SYSTEM {
				entries[i] = *info
			} else {
				slog.Debug("Skipping duplicate source", slog.String("key", key))
			}
			continue
		}
		keyIndex[key] = len(entries)
		entries = append(entries, *info)
	}

	state := models.CanonicalState{PausedList: []models.MediaSource{}}
	for _, entry := range entries {
		if entry.IsPlaying && state.ActiveMedia == nil {
			active := entry
			state.ActiveMedia = &active
			continue
		}
		// Extra playing entries should not occur but land in the
		// paused list rather than violating the single-active invariant
		state.PausedList = append(state.PausedList, entry)
	}
	return state
}

func dedupKey(info *models.MediaSource) string {
	return strings.ToLower(info.AppID) + ":" + NormalizeTitle(info.Title)
}
