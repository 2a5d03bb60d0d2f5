package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sastechlead/ips-payment-pipeline/internal/database"
	"github.com/sastechlead/ips-payment-pipeline/internal/eventlog"
	"github.com/sastechlead/ips-payment-pipeline/internal/server"
	"github.com/sastechlead/ips-payment-pipeline/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	rt, err := server.Bootstrap("validator")
	if err != nil {
		log.Fatalf("validator: %v", err)
	}
	cfg, logger := rt.Config, rt.Logger
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.MustOpen(ctx, cfg.Database, logger)
	defer db.Close()
	rdb := database.MustRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	publisher := eventlog.NewBreakerPublisher("validator-publisher", eventlog.NewPublisher(rdb, cfg.EventLog), cfg.Breaker, logger, rt.Metrics)
	validator := services.NewValidatorService(db, publisher, rt.Topics, cfg.Validation, logger)

	retrier := eventlog.NewRetrier("validator", cfg.Retry, publisher, rt.Topics.DeadLetter, logger, rt.Metrics)
	consumer := eventlog.NewConsumer(rdb, cfg.EventLog, logger)

	r := server.NewRouter(cfg.Service.Name, logger, rt.Registry, map[string]server.Check{
		"postgres": db.PingContext,
		"redis":    server.RedisCheck(rdb),
	})
	srv := server.New(cfg.Service, r, logger)

	logger.Info("validation limit", zap.String("max_amount", cfg.Validation.MaxAmount.String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx, []string{rt.Topics.Received()}, retrier.Wrap(validator.Handle))
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("validator stopped", zap.Error(err))
	}
	logger.Info("validator stopped")
}
