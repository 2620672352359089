package pipeline

import (
	"context"
	"fmt"

	"toonify/internal/domain"
	"toonify/internal/events"
)

// admit checks the balance without charging.
func (s *Service) admit(ctx context.Context, userID string, cost int) error {
	balance, err := s.credits.Balance(ctx, userID)
	if err != nil {
		return fmt.Errorf("check credits: %w", err)
	}
	if balance < cost {
		return domain.ErrInsufficientCredits
	}
	return nil
}

// charge deducts cost once for providerJobID. A refused deduction is an
// admission error, not a fault.
func (s *Service) charge(ctx context.Context, userID string, cost int, reason, providerJobID string) (int, error) {
	remaining, ok, err := s.credits.Deduct(ctx, userID, cost, reason, providerJobID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("provider_job_id", providerJobID).Msg("pipeline: deduct credits")
		return 0, fmt.Errorf("deduct credits: %w", err)
	}
	if !ok {
		s.logger.Warn().Str("user_id", userID).Str("provider_job_id", providerJobID).Msg("pipeline: charge refused after provider accepted")
		return 0, domain.ErrInsufficientCredits
	}
	return remaining, nil
}

// record writes the processing row. Failures are logged only.
func (s *Service) record(ctx context.Context, job *domain.TransformJob) {
	if _, err := s.history.Record(ctx, job); err != nil {
		s.logger.Error().Err(err).
			Str("provider_job_id", job.ProviderJobID).
			Str("type", string(job.Type)).
			Msg("pipeline: record history row")
	}
}

// finish applies a terminal transition. The update is guarded, so a row
// that turned terminal concurrently keeps its stored outcome. Events are
// published only for the poll that performed the transition.
func (s *Service) finish(ctx context.Context, job *domain.TransformJob, providerJobID string, status domain.TransformStatus, resultURL, errMsg string) *PollResult {
	result := &PollResult{Status: status, ResultURL: resultURL, Error: errMsg}
	changed, err := s.history.UpdateStatus(ctx, providerJobID, status, resultURL, errMsg)
	if err != nil {
		s.logger.Error().Err(err).Str("provider_job_id", providerJobID).Msg("pipeline: update history row")
		return result
	}
	if !changed {
		if job == nil {
			return result
		}
		current, err := s.history.GetByProviderJobID(ctx, providerJobID)
		if err == nil && current.Status.Terminal() {
			return resultFromJob(current)
		}
		return result
	}

	evt := events.TransformEvent{PredictionID: providerJobID}
	if job != nil {
		updated := *job
		updated.Status, updated.ResultURL, updated.ErrorMessage = status, resultURL, errMsg
		evt = events.FromJob(&updated, s.now())
	} else {
		evt.Status, evt.ResultURL, evt.Error, evt.OccurredAt = status, resultURL, errMsg, s.now().UTC()
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), evt); err != nil {
		s.logger.Warn().Err(err).Str("provider_job_id", providerJobID).Msg("pipeline: publish transition")
	}
	s.logger.Info().
		Str("provider_job_id", providerJobID).
		Str("status", string(status)).
		Msg("pipeline: conversion finished")
	return result
}

// relayOrFallback stores the provider asset and returns its durable URL,
// or the provider URL when the copy fails.
func (s *Service) relayOrFallback(ctx context.Context, sourceURL, name, folder string) string {
	if s.relay == nil {
		return sourceURL
	}
	res := s.relay.Relay(ctx, sourceURL, name, folder)
	if !res.Success || res.URL == "" {
		s.logger.Warn().Str("source", sourceURL).Str("error", res.Error).Msg("pipeline: relay failed, using provider url")
		return sourceURL
	}
	return res.URL
}

// Abandon records that the caller stopped polling. The row fails with a
// timeout message; credits are not refunded. Provider jobs keep running.
func (s *Service) Abandon(ctx context.Context, userID, predictionID string) (*PollResult, error) {
	job, done, err := s.lookupOwned(ctx, userID, predictionID, "")
	if err != nil || done != nil {
		return done, err
	}
	if job == nil {
		return nil, domain.ErrNotFound
	}
	s.logger.Info().Str("provider_job_id", predictionID).Msg("pipeline: poll budget exhausted")
	return s.finish(ctx, job, predictionID, domain.StatusFailed, "", MsgTimedOut), nil
}
