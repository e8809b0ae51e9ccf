package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmops-backend/internal/config"
	"farmops-backend/internal/database"
	"farmops-backend/internal/inventory"
	"farmops-backend/internal/orders"
	"farmops-backend/internal/records"
	"farmops-backend/internal/server"
	"farmops-backend/internal/tenant"
	"farmops-backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env", "", "path to an env file (defaults to ./.env)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg := logger.Must(logger.New(cfg.LogMode))
	defer func() { _ = lg.Sync() }()

	if cfg.UsesDefaultDSN() {
		lg.Warn("DATABASE_DSN not set, using the local development database")
	}

	db, err := database.Open(cfg.DatabaseDSN, logger.Named(lg, "database"))
	if err != nil {
		lg.Fatal("database", zap.Error(err))
	}
	if err := database.Migrate(db, logger.Named(lg, "database")); err != nil {
		lg.Fatal("migrate", zap.Error(err))
	}

	app := server.New(server.Deps{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Log:         logger.Named(lg, "http"),
		Orders: orders.NewService(db,
			inventory.NewGuard(logger.Named(lg, "inventory")),
			logger.Named(lg, "orders")),
		Records: records.NewService(db, logger.Named(lg, "records")),
		Tenant:  tenant.NewService(db, logger.Named(lg, "tenant")),
	})

	go func() {
		lg.Info("server listening", zap.String("port", cfg.HTTPPort))
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			lg.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
