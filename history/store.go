package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jmoiron/sqlx"

	"github.com/marcus-crane/soloist/models"
)

// Transition is one recorded track change. The canonical in-memory state
// is discarded on shutdown; this ledger is what survives.
type Transition struct {
	ID              string    `db:"id" json:"id"`
	MediaID         string    `db:"media_id" json:"media_id"`
	AppID           string    `db:"app_id" json:"app_id"`
	Title           string    `db:"title" json:"title"`
	Artist          string    `db:"artist" json:"artist"`
	Album           string    `db:"album" json:"album"`
	Origin          string    `db:"origin" json:"origin"`
	DurationSeconds float64   `db:"duration_seconds" json:"duration_seconds"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type Store struct {
	db *sqlx.DB
}

func NewStore(database *sqlx.DB) *Store {
	return &Store{db: database}
}

// TransitionID is deterministic so replays of the same track produce the
// same identifier.
func TransitionID(src models.MediaSource) string {
	hashString := fmt.Sprintf("%s-%s-%s-%s",
		src.AppID,
		src.Title,
		src.Artist,
		src.Origin,
	)
	return fmt.Sprintf("%s:%d", src.Origin, xxhash.Sum64String(hashString))
}

// RecordTransition appends a row unless the newest entry for the same app
// already carries this title, so a restart doesn't resave the current track.
func (s *Store) RecordTransition(src models.MediaSource) error {
	var last Transition
	err := s.db.Get(&last, `
	  SELECT id, media_id, app_id, title, artist, album, origin, duration_seconds, created_at
	  FROM transitions
	  WHERE app_id = ?
	  ORDER BY created_at DESC, rowid DESC
	  LIMIT 1`, src.AppID)
	if err == nil && last.Title == src.Title {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	_, err = s.db.Exec(`
	  INSERT INTO transitions
	  (id, media_id, app_id, title, artist, album, origin, duration_seconds, created_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		TransitionID(src),
		src.MediaID,
		src.AppID,
		src.Title,
		src.Artist,
		src.Album,
		src.Origin,
		src.Duration,
		time.Now(),
	)
	return err
}

func (s *Store) GetHistory(limit int) ([]Transition, error) {
	var results []Transition

	if limit <= 0 {
		return results, fmt.Errorf("must request at least one historical item")
	}

	err := s.db.Select(&results, `
	  SELECT id, media_id, app_id, title, artist, album, origin, duration_seconds, created_at
	  FROM transitions
	  ORDER BY created_at DESC, rowid DESC
	  LIMIT ?`, limit)

	return results, err
}
