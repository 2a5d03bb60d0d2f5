package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/sastechlead/ips-payment-pipeline/internal/database"
	"github.com/sastechlead/ips-payment-pipeline/internal/eventlog"
	"github.com/sastechlead/ips-payment-pipeline/internal/handlers"
	mW "github.com/sastechlead/ips-payment-pipeline/internal/middleware"
	"github.com/sastechlead/ips-payment-pipeline/internal/server"
	"github.com/sastechlead/ips-payment-pipeline/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// @title IPS Payment Pipeline Intake API
// @version 1.0
// @description Accepts payment requests and projects their status
// @BasePath /api

func main() {
	rt, err := server.Bootstrap("intake")
	if err != nil {
		log.Fatalf("intake: %v", err)
	}
	cfg, logger := rt.Config, rt.Logger
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.MustOpen(ctx, cfg.Database, logger)
	defer db.Close()
	rdb := database.MustRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	publisher := eventlog.NewBreakerPublisher("intake-publisher", eventlog.NewPublisher(rdb, cfg.EventLog), cfg.Breaker, logger, rt.Metrics)

	intake := services.NewIntakeService(db, publisher, rt.Topics, logger)
	status := services.NewStatusService(db, rt.Topics, logger, rt.Metrics)

	retrier := eventlog.NewRetrier("status", cfg.Retry, publisher, rt.Topics.DeadLetter, logger, rt.Metrics)
	consumer := eventlog.NewConsumer(rdb, cfg.EventLog, logger)

	r := server.NewRouter(cfg.Service.Name, logger, rt.Registry, map[string]server.Check{
		"postgres": db.PingContext,
		"redis":    server.RedisCheck(rdb),
	})
	auth := mW.NewAuth(cfg.JWT)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		handlers.NewIntakeHandler(intake, logger).Mount(r)
	})
	srv := server.New(cfg.Service, r, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx, rt.Topics.StatusUpdates(), retrier.Wrap(status.Handle))
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("intake stopped", zap.Error(err))
	}
	logger.Info("intake stopped")
}
