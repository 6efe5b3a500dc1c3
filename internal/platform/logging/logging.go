// Package logging builds the zap loggers used by the discussion binaries.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level   string
	Service string
	// Env is attached as a field. Sampling is turned off for any env other
	// than production; empty keeps zap's production defaults.
	Env string
	// OutputPaths defaults to stderr.
	OutputPaths []string
}

// New builds the JSON production logger. Unknown levels fall back to info.
func New(level, service string) (*zap.Logger, error) {
	return Build(Config{Level: level, Service: service})
}

func Build(c Config) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(strings.ToLower(strings.TrimSpace(c.Level))); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	if len(c.OutputPaths) > 0 {
		cfg.OutputPaths = c.OutputPaths
	}

	env := strings.ToLower(strings.TrimSpace(c.Env))
	if env != "" && env != "production" && env != "prod" {
		cfg.Sampling = nil
	}

	fields := map[string]any{}
	if s := strings.TrimSpace(c.Service); s != "" {
		fields["service"] = s
	}
	if env != "" {
		fields["env"] = env
	}
	if len(fields) > 0 {
		cfg.InitialFields = fields
	}
	return cfg.Build()
}
