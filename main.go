package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teamforge/auction-engine/engine"
	"github.com/teamforge/auction-engine/engine/database"
	"github.com/teamforge/auction-engine/engine/logger"
	"github.com/teamforge/auction-engine/engine/server"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler("AuctionEngine")
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting TeamForge auction engine",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := engine.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	customHandler.Configure(cfg.Log.Level, cfg.Log.AddSource)
	slog.Info("Configuration loaded successfully",
		slog.String("log_level", cfg.Log.Level.String()))

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.Any("error", err))
		os.Exit(-1)
	}

	app := engine.New(*cfg, version, commit)
	app.Setup(db)
	defer app.Shutdown()

	// The startup sweep inside Start catches auctions that changed phase
	// while the service was down.
	app.Scheduler.Start()

	srv := server.New(app.Manager, app.Claims, app.Items, app.Balances, app.Bus)
	go func() {
		slog.Info("HTTP API listening", slog.String("addr", cfg.HTTP.Addr))
		if err := srv.Listen(cfg.HTTP.Addr); err != nil {
			slog.Error("HTTP server stopped", slog.Any("error", err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("Shutting down...")
	if err := srv.Shutdown(); err != nil {
		slog.Error("HTTP server shutdown failed", slog.Any("error", err))
	}
}
