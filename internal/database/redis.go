package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"go.uber.org/zap"
)

// NewRedis builds the event log client and verifies it answers PING.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// MustRedis connects to Redis or terminates the process.
func MustRedis(ctx context.Context, cfg config.RedisConfig, logger *logging.Logger) *redis.Client {
	rdb, err := NewRedis(ctx, cfg)
	if err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	logger.Info("Redis connection established", zap.String("addr", cfg.Addr))
	return rdb
}
