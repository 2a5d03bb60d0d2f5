package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sastechlead/ips-payment-pipeline/internal/audit"
	"github.com/sastechlead/ips-payment-pipeline/internal/database"
	"github.com/sastechlead/ips-payment-pipeline/internal/eventlog"
	"github.com/sastechlead/ips-payment-pipeline/internal/server"
	"github.com/sastechlead/ips-payment-pipeline/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	rt, err := server.Bootstrap("poster")
	if err != nil {
		log.Fatalf("poster: %v", err)
	}
	cfg, logger := rt.Config, rt.Logger
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.MustOpen(ctx, cfg.Database, logger)
	defer db.Close()
	rdb := database.MustRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	publisher := eventlog.NewBreakerPublisher("poster-publisher", eventlog.NewPublisher(rdb, cfg.EventLog), cfg.Breaker, logger, rt.Metrics)

	ledger := services.NewLedgerService(db, cfg.Posting, audit.NewLogger(logger), logger, rt.Metrics)
	poster := services.NewPosterService(ledger, publisher, rt.Topics, logger)

	retrier := eventlog.NewRetrier("poster", cfg.Retry, publisher, rt.Topics.DeadLetter, logger, rt.Metrics)
	consumer := eventlog.NewConsumer(rdb, cfg.EventLog, logger)

	r := server.NewRouter(cfg.Service.Name, logger, rt.Registry, map[string]server.Check{
		"postgres": db.PingContext,
		"redis":    server.RedisCheck(rdb),
	})
	srv := server.New(cfg.Service, r, logger)

	logger.Info("posting configured",
		zap.Duration("lock_timeout", cfg.Posting.LockTimeout),
		zap.Duration("statement_timeout", cfg.Posting.StatementTimeout),
		zap.Bool("guard_replays", cfg.Posting.GuardReplays),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx, []string{rt.Topics.Validated()}, retrier.Wrap(poster.Handle))
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("poster stopped", zap.Error(err))
	}
	logger.Info("poster stopped")
}
