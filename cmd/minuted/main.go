package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"minuted/internal/announce"
	"minuted/internal/api"
	"minuted/internal/capture"
	"minuted/internal/config"
	"minuted/internal/llm"
	"minuted/internal/meeting"
	"minuted/internal/session"
)

func main() {
	// Best effort; absence of a .env file is normal.
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("minuted starting",
		"port", cfg.Port,
		"lm_api_url", cfg.LMAPIURL,
		"capture_sidecar", cfg.CaptureSidecarURL,
		"meetings_retain", cfg.MeetingsRetain,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Open the meeting store — Postgres when configured, the
	// bounded JSON file otherwise.
	var store meeting.Store
	if cfg.DatabaseURL != "" {
		pg, err := meeting.NewPGStore(ctx, cfg.DatabaseURL, cfg.MeetingsRetain)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
		slog.Info("meeting store: postgres")
	} else {
		store = meeting.NewFileStore(cfg.MeetingsFile, cfg.MeetingsRetain)
		slog.Info("meeting store: file", "path", cfg.MeetingsFile)
	}

	// Step 2: Language-model client for titles, summaries, analysis.
	lmClient := llm.New(cfg.LMAPIURL, cfg.LMModel)

	// Step 3: Session manager over the capture sidecar.
	manager := session.New(capture.HTTPSourceFactory(cfg.CaptureSidecarURL), session.Config{
		Settings: capture.Settings{
			ListenTimeout:   cfg.ListenTimeout,
			PhraseTimeLimit: cfg.PhraseTimeLimit,
			ErrorBackoff:    cfg.ErrorBackoff,
		},
		DrainTimeout:        cfg.StopDrainTimeout,
		DefaultLanguage:     cfg.DefaultLanguage,
		DefaultTitle:        cfg.DefaultTitle,
		DefaultSpeakerCount: cfg.DefaultSpeakerCount,
	})

	finalizer := meeting.NewFinalizer(lmClient, store, cfg.DefaultTitle)

	// Step 4: Optional NATS announcer for lifecycle events.
	var announcer *announce.Announcer
	if cfg.NatsURL != "" {
		var err error
		announcer, err = announce.Connect(cfg.NatsURL)
		if err != nil {
			slog.Warn("NATS unavailable, lifecycle events disabled", "error", err)
		} else {
			defer announcer.Close()
			slog.Info("NATS announcer enabled", "url", cfg.NatsURL)
		}
	}

	// Step 5: HTTP control plane.
	srv := api.NewServer(manager, finalizer, store, lmClient, announcer, cfg.Port)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("minuted ready", "port", cfg.Port)

	// Wait for shutdown signal, then drain live sessions so in-progress
	// meetings are finalized rather than lost.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("shutting down", "signal", sig)
	cancel()

	for _, st := range manager.StopAll() {
		rec := finalizer.Finalize(context.Background(), st)
		announcer.SessionStopped(st.ID, rec.PhraseCount)
		announcer.MeetingStored(rec.ID, rec.Title, rec.PhraseCount)
	}

	slog.Info("minuted stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
