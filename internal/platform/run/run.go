package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Task runs until ctx is cancelled or it fails.
type Task func(ctx context.Context) error

type Runner struct {
	Logger *zap.Logger
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log}
}

// WithSignals runs tasks together until SIGINT/SIGTERM or the first failure,
// which cancels the rest. It returns the process exit code.
func (r *Runner) WithSignals(tasks ...Task) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return r.Run(ctx, tasks...)
}

// Run is WithSignals without signal handling.
func (r *Runner) Run(ctx context.Context, tasks ...Task) int {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			err := t(gctx)
			if errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		r.Logger.Info("shutdown signal received")
	}
	if err != nil {
		r.Logger.Error("service exited with error", zap.Error(err))
		return 1
	}
	return 0
}

func Exit(code int) {
	os.Exit(code)
}
