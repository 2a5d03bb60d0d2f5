package database

import (
	"testing"

	"github.com/sastechlead/ips-payment-pipeline/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestWithURL_KeepsPoolSettings(t *testing.T) {
	base := config.DBConfig{Host: "db", Name: "intake_db", MaxOpenConns: 10, MaxIdleConns: 2}

	cfg := WithURL(base, "postgres://reader@ledger:5432/posting_db?sslmode=disable")

	assert.Equal(t, "postgres://reader@ledger:5432/posting_db?sslmode=disable", cfg.DSN())
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 2, cfg.MaxIdleConns)
	assert.Empty(t, base.URL)
}
