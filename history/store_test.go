package history

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-crane/soloist/migrations"
	"github.com/marcus-crane/soloist/models"
	"github.com/marcus-crane/soloist/shared"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)

	goose.SetBaseFS(migrations.GetMigrations())

	err = goose.SetDialect("sqlite3")
	require.NoError(t, err)

	err = goose.Up(db.DB, ".")
	require.NoError(t, err)

	return db
}

func sourceFor(title string) models.MediaSource {
	return models.MediaSource{
		MediaID:  "desktop-Spotify.exe",
		AppID:    "Spotify",
		Title:    title,
		Artist:   "artist",
		Album:    "album",
		Duration: 180,
		Origin:   shared.ORIGIN_SYSTEM,
	}
}

func TestStore_RecordTransition(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)

	err := store.RecordTransition(sourceFor("a good song"))
	require.NoError(t, err)

	results, err := store.GetHistory(10)
	assert.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "desktop-Spotify.exe", results[0].MediaID)
	assert.Equal(t, "Spotify", results[0].AppID)
	assert.Equal(t, "a good song", results[0].Title)
	assert.Equal(t, "artist", results[0].Artist)
	assert.Equal(t, "album", results[0].Album)
	assert.Equal(t, shared.ORIGIN_SYSTEM, results[0].Origin)
	assert.Equal(t, float64(180), results[0].DurationSeconds)

	// Observing the same track again is not a transition
	err = store.RecordTransition(sourceFor("a good song"))
	require.NoError(t, err)

	results, err = store.GetHistory(10)
	assert.NoError(t, err)
	assert.Len(t, results, 1)

	// A new title is
	err = store.RecordTransition(sourceFor("a better song"))
	require.NoError(t, err)

	results, err = store.GetHistory(10)
	assert.NoError(t, err)
	require.Len(t, results, 2)

	// Newest first
	assert.Equal(t, "a better song", results[0].Title)
	assert.Equal(t, "a good song", results[1].Title)
}

func TestStore_ReplayedTrackIsRecordedAgain(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)

	require.NoError(t, store.RecordTransition(sourceFor("song one")))
	require.NoError(t, store.RecordTransition(sourceFor("song two")))
	require.NoError(t, store.RecordTransition(sourceFor("song one")))

	results, err := store.GetHistory(10)
	assert.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "song one", results[0].Title)
	assert.Equal(t, "song two", results[1].Title)
	assert.Equal(t, "song one", results[2].Title)

	// Replays share a deterministic id
	assert.Equal(t, results[0].ID, results[2].ID)
	assert.NotEqual(t, results[0].ID, results[1].ID)
}

func TestStore_GetHistoryLimit(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db)

	require.NoError(t, store.RecordTransition(sourceFor("one")))
	require.NoError(t, store.RecordTransition(sourceFor("two")))
	require.NoError(t, store.RecordTransition(sourceFor("three")))

	results, err := store.GetHistory(2)
	assert.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = store.GetHistory(0)
	assert.Error(t, err)

	_, err = store.GetHistory(-1)
	assert.Error(t, err)
}

func TestTransitionID(t *testing.T) {
	a := TransitionID(sourceFor("a song"))
	b := TransitionID(sourceFor("a song"))
	c := TransitionID(sourceFor("another song"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	fallback := sourceFor("a song")
	fallback.Origin = shared.ORIGIN_FALLBACK
	assert.NotEqual(t, a, TransitionID(fallback))
}
