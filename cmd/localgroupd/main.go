package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/localgroup/core"
	"github.com/tendant/localgroup/internal/config"
	"github.com/tendant/localgroup/pkg/events"
	"github.com/tendant/localgroup/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	var db *sql.DB
	if cfg.StoreDriver == config.StoreDriverPostgres {
		db, err = repository.NewDB(repository.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		logger.Info("connected to database")
	}

	// Event publisher
	var publisher events.Publisher = events.Nop{}
	if cfg.HasNATS() {
		nc, err := events.NewNATSPublisher(events.NATSConfig{
			Servers: cfg.NATSServers(),
			Name:    cfg.NATSName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to nats", "error", err)
			os.Exit(1)
		}
		defer nc.Close()

		publisher = nc
		logger.Info("event publishing enabled", "servers", cfg.NATSServers())
	}

	c, err := core.New(core.Config{
		DB:                 db,
		JWTSecret:          cfg.JWTSecret,
		JWTIssuer:          cfg.JWTIssuer,
		Rules:              cfg.Rules(),
		TickPeriod:         cfg.TickPeriod,
		TickTimeout:        cfg.TickTimeout,
		SweepConcurrency:   cfg.SweepConcurrency,
		Publisher:          publisher,
		SubjectPrefix:      cfg.NATSSubjectPrefix,
		RateLimit:          cfg.RateLimit,
		SecurityHeaders:    cfg.SecurityHeaders,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      c.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Start lifecycle scheduler
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.Scheduler().Run(ctx); err != nil {
			logger.Error("lifecycle scheduler stopped", "error", err)
		}
	}()

	// Start server in goroutine
	go func() {
		logger.Info("starting server",
			"addr", addr,
			"store", cfg.StoreDriver,
			"max_group_size", cfg.GroupMaxSize,
			"min_group_size", cfg.GroupMinSize,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Stop the scheduler first so no transition commits after shutdown starts.
	stop()
	wg.Wait()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if n := c.Scheduler().Pending(); n > 0 {
		logger.Warn("trust score deltas not applied at shutdown", "pending", n)
	}

	logger.Info("server stopped")
}
