// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/config"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/cart"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/diagnostics"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/infrastructure/commerce"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/infrastructure/database/postgres"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/infrastructure/database/redis"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/interfaces/http"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/interfaces/http/routes"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/pkg/logger"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/pkg/metrics"
	"gorm.io/gorm"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg)
	log.WithFields(logrus.Fields{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("Starting storefront cart service")

	// Connect to Redis
	redisClient, err := redis.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	checks := map[string]http.HealthChecker{"redis": redisClient}

	// Connect to the diagnostics database
	var gormDB *gorm.DB
	if cfg.Diagnostics.Persist {
		db, err := postgres.NewConnection(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		migration := postgres.NewMigration(db.GetDB())
		if err := migration.RunAutoMigrations(); err != nil {
			log.Fatalf("Database migration failed: %v", err)
		}
		if err := migration.CreateIndexes(); err != nil {
			log.Warnf("Index creation failed: %v", err)
		}
		if _, err := migration.PruneDivergenceEvents(cfg.Diagnostics.RetentionDays); err != nil {
			log.Warnf("Divergence pruning failed: %v", err)
		}

		gormDB = db.GetDB()
		checks["database"] = db
	}

	m := metrics.New()
	diag := diagnostics.NewService(gormDB, m, cfg.Diagnostics.WriteTimeout, log)
	commerceClient := commerce.NewClient(cfg, log)

	registry := cart.NewRegistry(func(sessionID string) *cart.Engine {
		local := cart.NewLocalStore(redisClient, sessionID, cfg.Cart.LocalTTL, log)
		return cart.NewEngine(sessionID, local, commerceClient, cart.Options{
			Logger:       log,
			Observer:     diag,
			MergeOnLogin: cfg.Cart.MergeOnLogin,
			LocalTimeout: cfg.Cart.LocalTimeout,
		})
	}, cfg.Cart.SessionIdleTTL, log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go registry.Run(ctx, cfg.Cart.SweepInterval)

	server := http.NewServer(cfg, routes.Dependencies{
		Config:      cfg,
		Registry:    registry,
		Diagnostics: diag,
		Metrics:     m,
		RedisClient: redisClient.GetClient(),
		Logger:      log,
	}, checks)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Errorf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	log.Info("Server shutdown completed")
}
