package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// Open connects to Postgres, verifies the connection and applies the pool settings.
func Open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// MustOpen opens the database or terminates the process. Connectivity is only
// fatal at startup.
func MustOpen(ctx context.Context, cfg config.DBConfig, logger *logging.Logger) *sql.DB {
	db, err := Open(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.String("database", cfg.Name), zap.Error(err))
	}
	logger.Info("Database connection established", zap.String("database", cfg.Name))
	return db
}

// WithURL returns a copy of base that connects through url, keeping its pool settings.
func WithURL(base config.DBConfig, url string) config.DBConfig {
	base.URL = url
	return base
}
