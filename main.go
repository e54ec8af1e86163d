// Package main is the parley server entry point.
//
// main wires the layers together in order: config, logger, database,
// repositories, hub, services, hub callbacks, handlers, routes, then the
// HTTP server with graceful shutdown. There are no globals; everything is
// built here and passed down.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/akinalp/parley/config"
	"github.com/akinalp/parley/database"
	"github.com/akinalp/parley/middleware"
	"github.com/akinalp/parley/pkg/logger"
	"github.com/akinalp/parley/pkg/metrics"
	"github.com/akinalp/parley/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ─── Config ───
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("parley server starting", zap.Int("port", cfg.Server.Port))

	// ─── Database ───
	db, err := database.New(cfg.Database.Path, database.Migrations(), log.Named("database"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// ─── Repositories ───
	repos := initRepositories(db.Conn)

	// No socket survives a restart, so nobody can be online yet.
	resetCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	n, err := repos.User.ResetPresence(resetCtx, time.Now().UTC())
	cancel()
	if err != nil {
		return fmt.Errorf("failed to reset presence: %w", err)
	}
	if n > 0 {
		log.Info("stale presence cleared", zap.Int64("users", n))
	}

	repos.Presence = connectPresenceCache(cfg.Redis, log)
	if repos.Presence != nil {
		defer repos.Presence.Close()
	}

	// ─── Hub + Services ───
	m := metrics.New()
	hub := ws.NewHub(log.Named("ws"), m)

	svcs := initServices(repos, hub, m, cfg, log)
	defer svcs.Presence.Close()

	registerHubCallbacks(hub, svcs.Presence)
	go hub.Run()

	if cfg.Metrics.Enabled {
		svcs.Metrics.Start()
		defer svcs.Metrics.Stop()
	}

	// ─── HTTP ───
	limiters := initRateLimiters(cfg.RateLimit)
	h := initHandlers(svcs, limiters, hub, cfg, log)

	mux := http.NewServeMux()
	initRoutes(mux, h, svcs.Auth, repos.User, m, cfg.Metrics.Enabled)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	handler := corsHandler.Handler(middleware.Metrics(m)(mux))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// ─── Graceful Shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-done:
	case err := <-serveErr:
		hub.Shutdown()
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("shutting down")

	// Sockets first so clients see the close before the listener goes away.
	// Shutdown also queues the offline transitions for every connected user.
	hub.Shutdown()

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}
