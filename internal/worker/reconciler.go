// Package worker finishes conversions whose callers stopped polling.
package worker

import (
	"context"
	"errors"
	"time"

	"toonify/internal/domain"
	"toonify/internal/infra"
	"toonify/internal/pipeline"
)

// Finisher advances one processing row.
type Finisher interface {
	Reconcile(ctx context.Context, job domain.TransformJob, giveUpBefore time.Time) (*pipeline.PollResult, error)
}

// Reconciler periodically polls rows that stayed processing for longer than
// StaleAfter and abandons the ones older than GiveUpAfter.
type Reconciler struct {
	Lister      domain.StaleLister
	Finisher    Finisher
	Logger      *infra.Logger
	Interval    time.Duration
	StaleAfter  time.Duration
	GiveUpAfter time.Duration
	BatchSize   int

	now func() time.Time
}

// Run loops until ctx is canceled.
func (r *Reconciler) Run(ctx context.Context) error {
	logger := r.logger()
	interval := r.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger.Info().Dur("interval", interval).Dur("stale_after", r.StaleAfter).Msg("worker: started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("worker: reconcile pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stats summarizes one pass.
type Stats struct {
	Scanned   int
	Completed int
	Failed    int
	Pending   int
	Errors    int
}

// RunOnce reconciles one batch of stale rows.
func (r *Reconciler) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	current := now()
	limit := r.BatchSize
	if limit <= 0 {
		limit = 25
	}

	jobs, err := r.Lister.ListStale(ctx, current.Add(-r.StaleAfter), limit)
	if err != nil {
		return stats, err
	}
	giveUpBefore := current.Add(-r.GiveUpAfter)
	logger := r.logger()
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++
		res, err := r.Finisher.Reconcile(ctx, job, giveUpBefore)
		if err != nil {
			stats.Errors++
			logger.Warn().Err(err).
				Str("provider_job_id", job.ProviderJobID).
				Str("type", string(job.Type)).
				Msg("worker: reconcile failed")
			continue
		}
		switch res.Status {
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
	}
	if stats.Scanned > 0 {
		logger.Info().
			Int("scanned", stats.Scanned).
			Int("completed", stats.Completed).
			Int("failed", stats.Failed).
			Int("pending", stats.Pending).
			Int("errors", stats.Errors).
			Msg("worker: reconcile pass")
	}
	return stats, nil
}

func (r *Reconciler) logger() *infra.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return infra.NopLogger()
}
