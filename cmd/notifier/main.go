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
	rt, err := server.Bootstrap("notifier")
	if err != nil {
		log.Fatalf("notifier: %v", err)
	}
	cfg, logger := rt.Config, rt.Logger
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.MustOpen(ctx, cfg.Database, logger)
	defer db.Close()
	rdb := database.MustRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	// the notifier publishes nothing itself, only dead letters
	deadLetters := eventlog.NewBreakerPublisher("notifier-dlq", eventlog.NewPublisher(rdb, cfg.EventLog), cfg.Breaker, logger, rt.Metrics)
	notifier := services.NewNotificationService(db, rt.Topics, logger)

	retrier := eventlog.NewRetrier("notifier", cfg.Retry, deadLetters, rt.Topics.DeadLetter, logger, rt.Metrics)
	consumer := eventlog.NewConsumer(rdb, cfg.EventLog, logger)

	r := server.NewRouter(cfg.Service.Name, logger, rt.Registry, map[string]server.Check{
		"postgres": db.PingContext,
		"redis":    server.RedisCheck(rdb),
	})
	srv := server.New(cfg.Service, r, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx, rt.Topics.Terminal(), retrier.Wrap(notifier.Handle))
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("notifier stopped", zap.Error(err))
	}
	logger.Info("notifier stopped")
}
