package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"toonify/internal/bootstrap"
	"toonify/internal/infra"
	"toonify/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, &logger)
	defer rt.Close()
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to start")
	}

	r := &worker.Reconciler{
		Lister:      rt.Stale,
		Finisher:    rt.Service,
		Logger:      &logger,
		Interval:    cfg.WorkerInterval,
		StaleAfter:  cfg.WorkerStaleAfter,
		GiveUpAfter: cfg.WorkerGiveUpAfter,
		BatchSize:   cfg.WorkerBatchSize,
	}
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
