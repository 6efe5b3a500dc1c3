package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/discussion-platform/internal/platform/auth"
	"github.com/example/discussion-platform/internal/platform/config"
	"github.com/example/discussion-platform/internal/platform/events"
	"github.com/example/discussion-platform/internal/platform/httpserver"
	"github.com/example/discussion-platform/internal/platform/logging"
	"github.com/example/discussion-platform/internal/platform/natsconn"
	"github.com/example/discussion-platform/internal/platform/observability"
	"github.com/example/discussion-platform/internal/platform/ratelimit"
	"github.com/example/discussion-platform/internal/platform/run"
	"github.com/example/discussion-platform/services/discussion/internal/app"
	"github.com/example/discussion-platform/services/discussion/internal/comments"
	"github.com/example/discussion-platform/services/discussion/internal/handlers"
	"github.com/example/discussion-platform/services/discussion/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.Build(logging.Config{Level: cfg.LogLevel, Service: cfg.ServiceName, Env: cfg.Env})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:  cfg.ServiceName,
		Environment:  cfg.Env,
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplerRatio: cfg.Tracing.SamplerRatio,
	})
	if err != nil {
		log.Error("init tracing", zap.Error(err))
		run.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	cs, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("comment store", zap.Error(err))
		run.Exit(1)
	}
	defer closeStore()

	counter, closeShares, err := app.OpenShares(ctx, cfg, log)
	if err != nil {
		log.Error("share counter", zap.Error(err))
		run.Exit(1)
	}
	defer closeShares()

	// Events are optional outside production: without NATS nothing is
	// published and the share consumer does not run.
	var js nats.JetStreamContext
	nc, jsCtx, err := natsconn.JetStream(natsconn.Options{
		URL:           cfg.NATS.URL,
		Name:          cfg.ServiceName,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
		Log:           log,
	})
	switch {
	case err != nil && cfg.IsProduction():
		log.Error("nats is required in production", zap.Error(err))
		run.Exit(1)
	case err != nil:
		log.Warn("nats unavailable, events disabled", zap.Error(err))
	default:
		defer nc.Close()
		if err := events.EnsureStreams(jsCtx); err != nil {
			log.Error("ensure jetstream streams", zap.Error(err))
			run.Exit(1)
		}
		js = jsCtx
	}

	svc := comments.NewService(cs, log.Named("comments"),
		comments.WithPublisher(events.New(js, log.Named("events"))),
	)

	handlers.Logger = log.Named("http")
	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc:      cs.Ping,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         log.Named("access"),
	})
	handlers.Register(r, handlers.Deps{
		Comments: svc,
		Shares:   counter,
		Verifier: auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)},
		Limiter:  ratelimit.New(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: r})

	tasks := []run.Task{
		func(ctx context.Context) error { return srv.Run(ctx, log, 10*time.Second) },
	}
	if js != nil {
		consumer := worker.NewSharesConsumer(counter, log.Named("shares-consumer"), cfg.Worker.BatchSize, cfg.Worker.BatchInterval)
		tasks = append(tasks, func(ctx context.Context) error { return consumer.Run(ctx, js) })
	}

	code := run.New(log).WithSignals(tasks...)
	log.Info("exit", zap.Int("code", code))
	if code != 0 {
		_ = log.Sync()
		run.Exit(code)
	}
}
