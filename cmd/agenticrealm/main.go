// AgenticRealm simulation server: hosts persistent AI-populated game
// worlds, serves the player HTTP API, and drives NPC behaviour through the
// tick scheduler.
package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/d-andres/AgenticRealm/pkg/aiagents"
	"github.com/d-andres/AgenticRealm/pkg/api"
	"github.com/d-andres/AgenticRealm/pkg/config"
	"github.com/d-andres/AgenticRealm/pkg/database"
	"github.com/d-andres/AgenticRealm/pkg/engine"
	"github.com/d-andres/AgenticRealm/pkg/events"
	"github.com/d-andres/AgenticRealm/pkg/game"
	"github.com/d-andres/AgenticRealm/pkg/scenario"
	"github.com/d-andres/AgenticRealm/pkg/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting AgenticRealm",
		"http_port", cfg.HTTPPort,
		"tick_rate", cfg.TickRate,
		"db_path", cfg.DBPath)

	ctx := context.Background()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Error closing database", "error", err)
		}
	}()

	bus := events.NewBus()
	pool := aiagents.NewPool()

	registry := scenario.NewRegistry(bus, db)
	if err := registry.LoadPersisted(); err != nil {
		slog.Error("Failed to restore persisted instances", "error", err)
		// Non-fatal, start with an empty registry
	}

	// The generator and the session manager each get their own source;
	// sharing one rand.Rand across goroutines races on its state.
	seed := time.Now().UnixNano()
	generator := scenario.NewGenerator(pool, registry, rand.New(rand.NewSource(seed)))

	feed := store.NewFeed()
	agents := store.NewAgentStore()
	sessions := game.NewManager(rand.New(rand.NewSource(seed+1)), feed)

	scheduler := engine.NewScheduler(engine.Config{
		TickRate:     cfg.TickRate,
		IdleInterval: cfg.IdleInterval,
		AITimeout:    cfg.AIRequestTimeout,
	}, registry, bus, pool)
	if err := scheduler.Start(ctx); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(agents, feed, registry, generator, sessions, pool, cfg.AdminToken)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("Shutting down", "signal", sig)

	// Stop ticking first so no new NPC work is dispatched, then drop the
	// workers, then drain HTTP.
	scheduler.Stop()
	pool.Shutdown(ctx)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
