// Package config loads the discussion service settings from the environment
// and an optional discussion.yaml, with defaults kept in one place.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Addr           string
	AllowedOrigins string
}

type StoreConfig struct {
	// Backend is memory, badger or postgres.
	Backend       string
	DatabaseURL   string
	BadgerPath    string
	TxMaxAttempts int
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	OTLPEndpoint string
	SamplerRatio float64
}

// NATSConfig holds the JetStream connection settings.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// WorkerConfig tunes the share-click pull consumer.
type WorkerConfig struct {
	BatchSize     int
	BatchInterval time.Duration
}

type AppConfig struct {
	ServiceName string
	LogLevel    string
	Env         string
	HTTP        HTTPConfig
	Store       StoreConfig
	RedisURL    string
	NATS        NATSConfig
	Worker      WorkerConfig
	JWTSecret   string
	RateLimit   RateLimitConfig
	Tracing     TracingConfig
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c AppConfig) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "discussion")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("COMMENT_STORE", "memory")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("BADGER_PATH", "")
	v.SetDefault("STORE_TX_MAX_ATTEMPTS", 5)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_MAX_RECONNECTS", 5)
	v.SetDefault("NATS_RECONNECT_WAIT", "2s")
	v.SetDefault("WORKER_BATCH_SIZE", 100)
	v.SetDefault("WORKER_BATCH_INTERVAL", "2s")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

// Load reads env vars over an optional config file. DISCUSSION_CONFIG points
// at the file explicitly; otherwise ./discussion.yaml is used if present.
func Load() (AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("DISCUSSION_CONFIG")); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("discussion")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return AppConfig{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) AppConfig {
	str := func(k string) string { return strings.TrimSpace(v.GetString(k)) }
	return AppConfig{
		ServiceName: str("SERVICE_NAME"),
		LogLevel:    strings.ToLower(str("LOG_LEVEL")),
		Env:         strings.ToLower(str("APP_ENV")),
		HTTP: HTTPConfig{
			Addr:           str("HTTP_ADDR"),
			AllowedOrigins: str("CORS_ALLOWED_ORIGINS"),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(str("COMMENT_STORE")),
			DatabaseURL:   str("DATABASE_URL"),
			BadgerPath:    str("BADGER_PATH"),
			TxMaxAttempts: v.GetInt("STORE_TX_MAX_ATTEMPTS"),
		},
		RedisURL:  str("REDIS_URL"),
		NATS: NATSConfig{
			URL:           str("NATS_URL"),
			MaxReconnects: v.GetInt("NATS_MAX_RECONNECTS"),
			ReconnectWait: v.GetDuration("NATS_RECONNECT_WAIT"),
		},
		Worker: WorkerConfig{
			BatchSize:     v.GetInt("WORKER_BATCH_SIZE"),
			BatchInterval: v.GetDuration("WORKER_BATCH_INTERVAL"),
		},
		JWTSecret: str("JWT_SECRET"),
		RateLimit: RateLimitConfig{
			PerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
			Burst:     v.GetInt("RATE_LIMIT_BURST"),
		},
		Tracing: TracingConfig{
			Enabled:      v.GetBool("TRACING_ENABLED"),
			Exporter:     strings.ToLower(str("TRACING_EXPORTER")),
			OTLPEndpoint: str("OTEL_EXPORTER_OTLP_ENDPOINT"),
			SamplerRatio: v.GetFloat64("TRACING_SAMPLER_RATIO"),
		},
	}
}

func (c AppConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("SERVICE_NAME is required")
	}
	if c.HTTP.Addr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	switch c.Store.Backend {
	case "memory":
	case "badger":
		if c.Store.BadgerPath == "" {
			return errors.New("BADGER_PATH is required for the badger store")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("COMMENT_STORE must be memory, badger or postgres, got %q", c.Store.Backend)
	}
	if c.Store.TxMaxAttempts < 1 {
		return errors.New("STORE_TX_MAX_ATTEMPTS must be at least 1")
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit settings must not be negative")
	}
	if c.NATS.MaxReconnects < 1 || c.NATS.ReconnectWait <= 0 {
		return errors.New("NATS_MAX_RECONNECTS and NATS_RECONNECT_WAIT must be positive")
	}
	if c.Worker.BatchSize < 1 || c.Worker.BatchInterval <= 0 {
		return errors.New("WORKER_BATCH_SIZE and WORKER_BATCH_INTERVAL must be positive")
	}
	if c.Tracing.Enabled && c.Tracing.Exporter != "stdout" && c.Tracing.Exporter != "otlp" {
		return fmt.Errorf("TRACING_EXPORTER must be stdout or otlp, got %q", c.Tracing.Exporter)
	}
	if c.Tracing.SamplerRatio < 0 || c.Tracing.SamplerRatio > 1 {
		return errors.New("TRACING_SAMPLER_RATIO must be within [0, 1]")
	}

	if c.IsProduction() {
		if c.Store.Backend == "memory" {
			return errors.New("a persistent COMMENT_STORE is required in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
	}
	return nil
}
