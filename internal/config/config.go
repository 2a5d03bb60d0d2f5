package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the single configuration value handed to every pipeline component.
type Config struct {
	Service        ServiceConfig
	Database       DBConfig
	QueryDatabases QueryDBConfig
	Redis          RedisConfig
	EventLog       EventLogConfig
	Topics         TopicConfig
	Validation     ValidationConfig
	Posting        PostingConfig
	Retry          RetryConfig
	Breaker        BreakerConfig
	Log            LogConfig
	JWT            JWTConfig
}

type ServiceConfig struct {
	Name string
	Port string
	// StaticDir, when set, is served by the query process as the UI
	StaticDir string
}

// DBConfig holds database configuration for the stage's own store.
type DBConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns URL when set, otherwise a key/value connection string.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// QueryDBConfig lists the per-stage stores read by the query projection.
type QueryDBConfig struct {
	IntakeURL       string
	ValidationURL   string
	PostingURL      string
	NotificationURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EventLogConfig struct {
	StreamPrefix  string
	Partitions    int
	ConsumerGroup string
	ConsumerName  string
	BlockTimeout  time.Duration
	StartID       string
	MaxLen        int64
}

type TopicConfig struct {
	Received  string
	Validated string
	Rejected  string
	Completed string
	Failed    string
	DLQSuffix string
}

type ValidationConfig struct {
	MaxAmount decimal.Decimal
}

type PostingConfig struct {
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	GuardReplays     bool
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

type LogConfig struct {
	Level  string
	Format string
	Dev    bool
}

type JWTConfig struct {
	SecretKey string
}

var envBindings = map[string]string{
	"service.name":       "SERVICE_NAME",
	"service.port":       "PORT",
	"service.static_dir": "STATIC_DIR",

	"database.url":               "DATABASE_URL",
	"database.host":              "DATABASE_HOST",
	"database.port":              "DATABASE_PORT",
	"database.user":              "DATABASE_USER",
	"database.password":          "DATABASE_PASSWORD",
	"database.name":              "DATABASE_NAME",
	"database.ssl_mode":          "DATABASE_SSL_MODE",
	"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
	"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
	"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",

	"query.intake_db_url":       "INTAKE_DB_URL",
	"query.validation_db_url":   "VALIDATION_DB_URL",
	"query.posting_db_url":      "POSTING_DB_URL",
	"query.notification_db_url": "NOTIFICATION_DB_URL",

	"redis.addr":     "REDIS_ADDR",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",

	"eventlog.stream_prefix":  "EVENTLOG_STREAM_PREFIX",
	"eventlog.partitions":     "EVENTLOG_PARTITIONS",
	"eventlog.consumer_group": "EVENTLOG_CONSUMER_GROUP",
	"eventlog.consumer_name":  "EVENTLOG_CONSUMER_NAME",
	"eventlog.block_timeout":  "EVENTLOG_BLOCK_TIMEOUT",
	"eventlog.start_id":       "EVENTLOG_START_ID",
	"eventlog.max_len":        "EVENTLOG_MAX_LEN",

	"topics.received":   "TOPIC_RECEIVED",
	"topics.validated":  "TOPIC_VALIDATED",
	"topics.rejected":   "TOPIC_REJECTED",
	"topics.completed":  "TOPIC_COMPLETED",
	"topics.failed":     "TOPIC_FAILED",
	"topics.dlq_suffix": "TOPIC_DLQ_SUFFIX",

	"validation.max_amount": "MAX_AMOUNT_LIMIT",

	"posting.lock_timeout":      "POSTING_LOCK_TIMEOUT",
	"posting.statement_timeout": "POSTING_STATEMENT_TIMEOUT",
	"posting.guard_replays":     "POSTING_GUARD_REPLAYS",

	"retry.max_attempts": "RETRY_MAX_ATTEMPTS",
	"retry.base_delay":   "RETRY_BASE_DELAY",
	"retry.max_delay":    "RETRY_MAX_DELAY",

	"breaker.max_requests":         "BREAKER_MAX_REQUESTS",
	"breaker.interval":             "BREAKER_INTERVAL",
	"breaker.timeout":              "BREAKER_TIMEOUT",
	"breaker.consecutive_failures": "BREAKER_CONSECUTIVE_FAILURES",

	"log.level":  "LOG_LEVEL",
	"log.format": "LOG_FORMAT",
	"log.dev":    "LOG_DEV",

	"jwt.secret_key": "JWT_SECRET_KEY",
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("service.name", service)
	v.SetDefault("service.port", "8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", strings.ReplaceAll(service, "-", "_")+"_db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("eventlog.stream_prefix", "")
	v.SetDefault("eventlog.partitions", 3)
	v.SetDefault("eventlog.consumer_group", service+"-group")
	v.SetDefault("eventlog.consumer_name", service+"-1")
	v.SetDefault("eventlog.block_timeout", 5*time.Second)
	v.SetDefault("eventlog.start_id", "$")
	v.SetDefault("eventlog.max_len", 100000)

	v.SetDefault("topics.received", "ips.tx.received")
	v.SetDefault("topics.validated", "ips.tx.validated")
	v.SetDefault("topics.rejected", "ips.tx.rejected")
	v.SetDefault("topics.completed", "ips.tx.completed")
	v.SetDefault("topics.failed", "ips.tx.failed")
	v.SetDefault("topics.dlq_suffix", ".dlq")

	v.SetDefault("validation.max_amount", "5000")

	v.SetDefault("posting.lock_timeout", 5*time.Second)
	v.SetDefault("posting.statement_timeout", 15*time.Second)
	v.SetDefault("posting.guard_replays", true)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 300*time.Millisecond)
	v.SetDefault("retry.max_delay", 5*time.Second)

	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", 60*time.Second)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.consecutive_failures", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.dev", false)
}

// Load builds the Config for the named service from .env and the environment.
func Load(service string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	setDefaults(v, service)

	// a missing .env is fine, the environment still applies
	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	maxAmount, err := decimal.NewFromString(v.GetString("validation.max_amount"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_AMOUNT_LIMIT: %w", err)
	}
	if !maxAmount.IsPositive() {
		return nil, fmt.Errorf("MAX_AMOUNT_LIMIT must be positive, got %s", maxAmount)
	}

	partitions := v.GetInt("eventlog.partitions")
	if partitions <= 0 {
		return nil, fmt.Errorf("EVENTLOG_PARTITIONS must be positive, got %d", partitions)
	}

	cfg := &Config{
		Service: ServiceConfig{
			Name:      v.GetString("service.name"),
			Port:      v.GetString("service.port"),
			StaticDir: v.GetString("service.static_dir"),
		},
		Database: DBConfig{
			URL:             v.GetString("database.url"),
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		QueryDatabases: QueryDBConfig{
			IntakeURL:       v.GetString("query.intake_db_url"),
			ValidationURL:   v.GetString("query.validation_db_url"),
			PostingURL:      v.GetString("query.posting_db_url"),
			NotificationURL: v.GetString("query.notification_db_url"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		EventLog: EventLogConfig{
			StreamPrefix:  v.GetString("eventlog.stream_prefix"),
			Partitions:    partitions,
			ConsumerGroup: v.GetString("eventlog.consumer_group"),
			ConsumerName:  v.GetString("eventlog.consumer_name"),
			BlockTimeout:  v.GetDuration("eventlog.block_timeout"),
			StartID:       v.GetString("eventlog.start_id"),
			MaxLen:        v.GetInt64("eventlog.max_len"),
		},
		Topics: TopicConfig{
			Received:  v.GetString("topics.received"),
			Validated: v.GetString("topics.validated"),
			Rejected:  v.GetString("topics.rejected"),
			Completed: v.GetString("topics.completed"),
			Failed:    v.GetString("topics.failed"),
			DLQSuffix: v.GetString("topics.dlq_suffix"),
		},
		Validation: ValidationConfig{
			MaxAmount: maxAmount,
		},
		Posting: PostingConfig{
			LockTimeout:      v.GetDuration("posting.lock_timeout"),
			StatementTimeout: v.GetDuration("posting.statement_timeout"),
			GuardReplays:     v.GetBool("posting.guard_replays"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("retry.max_attempts"),
			BaseDelay:   v.GetDuration("retry.base_delay"),
			MaxDelay:    v.GetDuration("retry.max_delay"),
		},
		Breaker: BreakerConfig{
			MaxRequests:         v.GetUint32("breaker.max_requests"),
			Interval:            v.GetDuration("breaker.interval"),
			Timeout:             v.GetDuration("breaker.timeout"),
			ConsecutiveFailures: v.GetUint32("breaker.consecutive_failures"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Dev:    v.GetBool("log.dev"),
		},
		JWT: JWTConfig{
			SecretKey: v.GetString("jwt.secret_key"),
		},
	}

	return cfg, nil
}
