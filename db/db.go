package db

import (
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func Initialize(path string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, err
	}
	slog.Info("Initialised DB connection", slog.String("path", path))
	return database, nil
}
