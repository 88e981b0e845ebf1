package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"reelhouse/api"
	"reelhouse/config"
	"reelhouse/handlers"
	"reelhouse/internal/database"
	"reelhouse/internal/logging"
	"reelhouse/services/accounts"
	"reelhouse/services/metadata"
	"reelhouse/services/progress"
	"reelhouse/services/scheduler"
	"reelhouse/services/sessions"
	"reelhouse/services/streaming"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: could not read .env: %v", err)
	}

	configPath := os.Getenv("REELHOUSE_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}
	settings.ApplyEnv(os.Getenv)
	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	logCloser, err := logging.Setup(settings.Log)
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	defer logCloser.Close()

	slog.Info("reelhouse starting", "component", "main", "config", cfgManager.Path())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	accountsSvc, err := accounts.NewService(db, accounts.WithSeed(settings.Auth.SeedUsername, settings.Auth.SeedPassword))
	if err != nil {
		log.Fatalf("failed to init accounts: %v", err)
	}
	if _, err := accountsSvc.EnsureSeedAccount(ctx); err != nil {
		log.Fatalf("failed to create seed account: %v", err)
	}
	if weak, err := accountsSvc.UsesDefaultPassword(ctx); err != nil {
		slog.Warn("could not check seed password", "component", "main", "error", err)
	} else if weak {
		slog.Warn("seed account still uses the default password; change it before exposing this server",
			"component", "main", "username", accountsSvc.SeedUsername())
	}

	sessionsSvc, err := sessions.NewService(db, sessions.WithTTL(settings.Auth.SessionTTL()))
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}
	progressSvc, err := progress.NewService(db)
	if err != nil {
		log.Fatalf("failed to init progress: %v", err)
	}
	metadataSvc := metadata.NewService(settings.Metadata, nil)
	if !metadataSvc.Configured() {
		slog.Warn("no TMDB API key configured; browsing pages will be empty", "component", "main")
	}
	streamBuilder := streaming.NewBuilder(settings.Streaming)

	renderer, err := handlers.NewRenderer()
	if err != nil {
		log.Fatalf("failed to parse templates: %v", err)
	}

	tasks := scheduler.NewService()
	if interval := settings.Auth.SweepInterval(); interval > 0 {
		if err := tasks.Register(sessions.JanitorTask(sessionsSvc, interval)); err != nil {
			log.Fatalf("failed to register session janitor: %v", err)
		}
	}
	if err := tasks.Start(ctx); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	r := mux.NewRouter()
	api.Register(r, api.NewAuthenticator(sessionsSvc), api.Handlers{
		Auth:     handlers.NewAuthHandler(accountsSvc, sessionsSvc, renderer, handlers.CookieConfig{Secure: settings.Server.SecureCookies, TTL: sessionsSvc.TTL()}),
		Pages:    handlers.NewPagesHandler(metadataSvc, streamBuilder, progressSvc, renderer),
		History:  handlers.NewHistoryHandler(progressSvc, renderer),
		Progress: handlers.NewProgressHandler(progressSvc),
		Metadata: handlers.NewMetadataHandler(metadataSvc, streamBuilder, progressSvc),
		Health:   handlers.NewHealthHandler(db),
		Tasks:    handlers.NewScheduledTasksHandler(tasks),
	})

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "component", "main", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received", "component", "main")
	case err := <-serveErr:
		if err != nil {
			slog.Error("server error", "component", "main", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := tasks.Stop(shutdownCtx); err != nil {
		slog.Warn("scheduler shutdown", "component", "main", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown", "component", "main", "error", err)
	}
	slog.Info("shutdown complete", "component", "main")
}
