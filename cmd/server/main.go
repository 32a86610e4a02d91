package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/codespacehelp/partybook/internal/app"
	"github.com/codespacehelp/partybook/internal/assets"
	httpx "github.com/codespacehelp/partybook/internal/http"
	"github.com/codespacehelp/partybook/internal/store"
	"github.com/codespacehelp/partybook/internal/ws"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.Env)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Durable room storage: embedded badger by default, postgres when
	// configured
	var db store.Store
	switch cfg.Store {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg, logger)
		if err != nil {
			logger.Error("postgres connect", "err", err)
			log.Fatal(err)
		}
		if err := store.RunMigrations(ctx, pg, logger); err != nil {
			logger.Error("migrations", "err", err)
			log.Fatal(err)
		}
		db = pg
	default:
		bg, err := store.OpenBadger(cfg.BadgerDir, logger)
		if err != nil {
			logger.Error("badger open", "err", err)
			log.Fatal(err)
		}
		db = bg
	}
	defer db.Close()

	// Optional redis bus for cross-instance fanout
	var bus *ws.RedisBus
	if cfg.RedisAddr != "" {
		var err error
		bus, err = ws.NewRedisBus(ctx, cfg, logger)
		if err != nil {
			logger.Error("redis connect", "err", err)
			log.Fatal(err)
		}
		defer bus.Close()
	}

	// External object-storage boundary
	ac := assets.NewClient(cfg.AssetAPIURL, cfg.UploadSecret, logger)

	// WebSocket hub
	hub := ws.NewHub(logger, db, bus, ac)
	go hub.Run(ctx)

	// HTTP + WS router
	router := httpx.NewRouter(cfg, hub, db, ac)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("server.listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.crash", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("server.shutdown.start")

	// shutdown
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("server.shutdown.complete")
	_ = os.Stdout.Sync()
}
