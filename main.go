package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	golobby "github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/marcus-crane/soloist/config"
	"github.com/marcus-crane/soloist/db"
	"github.com/marcus-crane/soloist/events"
	"github.com/marcus-crane/soloist/history"
	"github.com/marcus-crane/soloist/jobs"
	"github.com/marcus-crane/soloist/migrations"
	"github.com/marcus-crane/soloist/platform"
	"github.com/marcus-crane/soloist/playback"
	"github.com/marcus-crane/soloist/routes"
	"github.com/marcus-crane/soloist/server"
)

func main() {
	var cfg config.Config
	loader := golobby.New()
	if _, err := os.Stat(".env"); err == nil {
		loader.AddFeeder(feeder.DotEnv{Path: ".env"})
	}
	if err := loader.AddFeeder(feeder.Env{}).AddStruct(&cfg).Feed(); err != nil {
		slog.Error("Failed to load config", slog.String("stack", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.GetLogLevel(),
	}))
	slog.SetDefault(logger)

	// The OS media layer is required for minimal operation
	provider, err := platform.NewSessionProvider()
	if err != nil {
		slog.Error("OS media collaborator unavailable, can not start",
			slog.String("stack", err.Error()),
		)
		os.Exit(1)
	}

	var store *history.Store
	var database *sqlx.DB
	if cfg.Soloist.DbPath != "" {
		database, err = db.Initialize(cfg.Soloist.DbPath)
		if err != nil {
			slog.Error("Failed to open database", slog.String("stack", err.Error()))
			os.Exit(1)
		}
		goose.SetBaseFS(migrations.GetMigrations())
		if err := goose.SetDialect("sqlite3"); err != nil {
			slog.Error("Failed to set migration dialect", slog.String("stack", err.Error()))
			os.Exit(1)
		}
		if err := goose.Up(database.DB, "."); err != nil {
			slog.Error("Failed to run migrations", slog.String("stack", err.Error()))
			os.Exit(1)
		}
		store = history.NewStore(database)
	} else {
		slog.Info("No DB_PATH set, playback history disabled")
	}

	engine := playback.NewEngine(provider, playback.Options{
		History:     store,
		CallTimeout: cfg.Soloist.CollaboratorTimeout(),
	})

	detector, detectorErr := platform.NewAudioDetector()
	titler, titlerErr := platform.NewWindowTitler()
	commander, commanderErr := platform.NewAppCommander()
	if detectorErr != nil || titlerErr != nil || commanderErr != nil {
		// Logged once, not retried: the service runs fine without the
		// fallback, it just can't see apps outside the session API.
		slog.Warn("Audio fallback collaborators unavailable, fallback detection disabled")
	} else {
		engine.AttachFallback(playback.NewFallbackMonitor(
			detector, titler, commander, cfg.Fallback.AppTable(),
		))
	}

	events.Init()

	syncServer := server.New(engine, server.Options{})

	scheduler := jobs.SetupInBackground(engine, syncServer, cfg.Soloist.PollInterval())
	if cfg.Soloist.JobsEnabled() {
		scheduler.StartAsync()
		slog.Info("Reconciliation loop started",
			slog.Duration("interval", cfg.Soloist.PollInterval()),
		)
	} else {
		slog.Info("Background jobs are disabled.")
	}

	router := routes.Register(http.NewServeMux(), syncServer, engine, store)

	httpServer := &http.Server{
		Addr:    cfg.Soloist.Addr(),
		Handler: router,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		slog.Info("Shutting down")
		scheduler.Stop()
		syncServer.Shutdown()
		engine.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
		if database != nil {
			database.Close()
		}
	}()

	slog.Info("Soloist is running", slog.String("addr", cfg.Soloist.Addr()))

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server stopped unexpectedly", slog.String("stack", err.Error()))
		scheduler.Stop()
		os.Exit(1)
	}
}
