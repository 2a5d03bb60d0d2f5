package server

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/events"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/metrics"
	"go.uber.org/zap"
)

const metricsNamespace = "ips"

// Runtime is the configuration, logger and metrics shared by the components
// of one process.
type Runtime struct {
	Config   *config.Config
	Logger   *logging.Logger
	Registry *prometheus.Registry
	Metrics  metrics.Collector
	Topics   events.Topics
}

// Bootstrap loads configuration for service and builds its logger and metrics.
func Bootstrap(service string) (*Runtime, error) {
	cfg, err := config.Load(service)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	logger.Info("configuration loaded",
		zap.String("port", cfg.Service.Port),
		zap.String("database", cfg.Database.Name),
		zap.String("redis", cfg.Redis.Addr),
		zap.Int("partitions", cfg.EventLog.Partitions),
		zap.String("consumer_group", cfg.EventLog.ConsumerGroup),
	)

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  metrics.NewPrometheusCollector(metricsNamespace, reg),
		Topics:   events.NewTopics(cfg.Topics),
	}, nil
}

// RedisCheck adapts a Redis client to a health Check.
func RedisCheck(rdb *redis.Client) Check {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
