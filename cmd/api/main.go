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

	"payment-records/internal/auth"
	"payment-records/internal/cache"
	"payment-records/internal/config"
	"payment-records/internal/controller"
	"payment-records/internal/logging"
	"payment-records/internal/migrations"
	"payment-records/internal/repository"
	"payment-records/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("Starting payment records service...", "db_driver", cfg.DB.Driver, "port", cfg.Server.Port)

	db, err := repository.Open(cfg.DB)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Up(ctx, db, logger); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	rdb := cache.Connect(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	principalRepo := repository.NewPrincipalRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	// Roles are always read from the database; the cache only serves owner names.
	profiles := cache.NewPrincipalCache(principalRepo, rdb, cfg.Redis.TTL)

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(principalRepo, issuer, logger)
	paymentService := service.NewPaymentService(paymentRepo, principalRepo, profiles, logger)

	e := controller.NewRouter(controller.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
		Ping:           db.Ping,
	}, authService, paymentService)

	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}
