package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/sastechlead/ips-payment-pipeline/internal/database"
	"github.com/sastechlead/ips-payment-pipeline/internal/handlers"
	mW "github.com/sastechlead/ips-payment-pipeline/internal/middleware"
	"github.com/sastechlead/ips-payment-pipeline/internal/server"
	"github.com/sastechlead/ips-payment-pipeline/internal/services"
	"go.uber.org/zap"
)

// @title IPS Payment Pipeline Query API
// @version 1.0
// @description Read-only view over transactions, events, ledger entries and notifications
// @BasePath /api

func main() {
	rt, err := server.Bootstrap("query")
	if err != nil {
		log.Fatalf("query: %v", err)
	}
	cfg, logger := rt.Config, rt.Logger
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores := cfg.QueryDatabases
	intakeDB := database.MustOpen(ctx, database.WithURL(cfg.Database, stores.IntakeURL), logger)
	defer intakeDB.Close()
	validationDB := database.MustOpen(ctx, database.WithURL(cfg.Database, stores.ValidationURL), logger)
	defer validationDB.Close()
	postingDB := database.MustOpen(ctx, database.WithURL(cfg.Database, stores.PostingURL), logger)
	defer postingDB.Close()
	notificationDB := database.MustOpen(ctx, database.WithURL(cfg.Database, stores.NotificationURL), logger)
	defer notificationDB.Close()

	query := services.NewQueryService(intakeDB, validationDB, postingDB, notificationDB, logger)

	r := server.NewRouter(cfg.Service.Name, logger, rt.Registry, map[string]server.Check{
		"intake":       intakeDB.PingContext,
		"validation":   validationDB.PingContext,
		"posting":      postingDB.PingContext,
		"notification": notificationDB.PingContext,
	})
	auth := mW.NewAuth(cfg.JWT)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		handlers.NewQueryHandler(query, logger).Mount(r)
	})
	if cfg.Service.StaticDir != "" {
		logger.Info("serving UI", zap.String("dir", cfg.Service.StaticDir))
		r.Handle("/*", mW.StaticFileServer(cfg.Service.StaticDir))
	}

	if err := server.New(cfg.Service, r, logger).Run(ctx); err != nil {
		logger.Fatal("query stopped", zap.Error(err))
	}
	logger.Info("query stopped")
}
