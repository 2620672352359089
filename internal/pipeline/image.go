package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"toonify/internal/domain"
	"toonify/internal/providers"
	"toonify/internal/providers/replicate"
	"toonify/internal/storage"
	"toonify/internal/styles"
)

// ImageRequest asks for one styled image.
type ImageRequest struct {
	UserID  string
	Image   []byte
	MIME    string
	StyleID string
}

// ImageSubmission is returned once the provider accepted and the user was charged.
type ImageSubmission struct {
	PredictionID string
	Remaining    int
}

// PollResult is the caller-facing state of one conversion.
type PollResult struct {
	Status       domain.TransformStatus
	ResultURL    string
	Error        string
	ActualPrompt string
}

// SubmitImage admits, submits and charges an image conversion. Nothing is
// sent to the provider unless the style resolves and the balance covers it.
func (s *Service) SubmitImage(ctx context.Context, req ImageRequest) (*ImageSubmission, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: image is required", domain.ErrInvalidRequest)
	}
	tmpl, ok := styles.Lookup(req.StyleID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStyle, req.StyleID)
	}
	if err := s.admit(ctx, req.UserID, domain.ImageCreditCost); err != nil {
		return nil, err
	}

	mime := req.MIME
	if mime == "" {
		mime = http.DetectContentType(req.Image)
	}
	predictionID, err := s.transfer.Submit(ctx, req.Image, mime, tmpl.Prompt)
	if err != nil {
		return nil, err
	}

	remaining, err := s.charge(ctx, req.UserID, domain.ImageCreditCost, "image transform", predictionID)
	if err != nil {
		// Compensate: the provider job must not run unpaid.
		cctx := context.WithoutCancel(ctx)
		if cerr := s.transfer.Cancel(cctx, predictionID); cerr != nil {
			s.logger.Error().Err(cerr).Str("prediction_id", predictionID).Msg("pipeline: cancel after failed charge")
		}
		return nil, err
	}

	s.record(ctx, &domain.TransformJob{
		UserID:        req.UserID,
		Type:          domain.TransformTypeImage,
		StyleID:       tmpl.ID,
		ProviderJobID: predictionID,
		CreditsUsed:   domain.ImageCreditCost,
	})
	s.logger.Info().
		Str("user_id", req.UserID).
		Str("style_id", tmpl.ID).
		Str("prediction_id", predictionID).
		Int("remaining", remaining).
		Msg("pipeline: image conversion submitted")
	return &ImageSubmission{PredictionID: predictionID, Remaining: remaining}, nil
}

// PollImage reports the state of an image conversion and persists terminal
// transitions. A terminal row is returned as stored.
func (s *Service) PollImage(ctx context.Context, userID, predictionID string) (*PollResult, error) {
	job, done, err := s.lookupOwned(ctx, userID, predictionID, domain.TransformTypeImage)
	if err != nil || done != nil {
		return done, err
	}

	pred, err := s.transfer.Poll(ctx, predictionID)
	if err != nil {
		return s.pollError(ctx, job, predictionID, err, MsgStyleFailed)
	}
	switch pred.Status {
	case replicate.StatusSucceeded:
		if pred.OutputURL == "" {
			return s.finish(ctx, job, predictionID, domain.StatusFailed, "", MsgNoOutput), nil
		}
		url := s.relayOrFallback(ctx, pred.OutputURL, "disney-style-"+predictionID+".jpg", storage.FolderGeneratedImages)
		return s.finish(ctx, job, predictionID, domain.StatusCompleted, url, ""), nil
	case replicate.StatusFailed:
		s.logger.Warn().Str("prediction_id", predictionID).Str("provider_error", pred.Error).Msg("pipeline: style conversion failed")
		return s.finish(ctx, job, predictionID, domain.StatusFailed, "", MsgStyleFailed), nil
	case replicate.StatusCanceled:
		return s.finish(ctx, job, predictionID, domain.StatusFailed, "", MsgCanceled), nil
	default:
		return &PollResult{Status: domain.StatusProcessing}, nil
	}
}

// lookupOwned loads the history row for predictionID. It returns a non-nil
// result when the row is already terminal. A row owned by someone else, or
// of a type other than want, is reported as not found. An empty want accepts
// either type. A missing or unreadable row is tolerated since the provider
// id stays authoritative.
func (s *Service) lookupOwned(ctx context.Context, userID, predictionID string, want domain.TransformType) (*domain.TransformJob, *PollResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(predictionID) == "" {
		return nil, nil, fmt.Errorf("%w: prediction id is required", domain.ErrInvalidRequest)
	}
	job, err := s.history.GetByProviderJobID(ctx, predictionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Warn().Str("prediction_id", predictionID).Msg("pipeline: polling job without history row")
		return nil, nil, nil
	case err != nil:
		s.logger.Error().Err(err).Str("prediction_id", predictionID).Msg("pipeline: read history row")
		return nil, nil, nil
	}
	if job.UserID != userID || (want != "" && job.Type != want) {
		return nil, nil, domain.ErrNotFound
	}
	if job.Status.Terminal() {
		return job, resultFromJob(job), nil
	}
	return job, nil, nil
}

// pollError turns a provider failure during a poll into a result. Transient
// failures keep the job processing so the caller's loop continues. A job the
// provider no longer knows fails its recorded row with failMsg.
func (s *Service) pollError(ctx context.Context, job *domain.TransformJob, id string, err error, failMsg string) (*PollResult, error) {
	if providers.IsRetryable(err) {
		s.logger.Warn().Err(err).Str("prediction_id", id).Msg("pipeline: transient poll failure")
		return &PollResult{Status: domain.StatusProcessing}, nil
	}
	var perr *providers.Error
	if errors.As(err, &perr) && perr.StatusCode == http.StatusNotFound {
		if job == nil {
			return nil, domain.ErrNotFound
		}
		s.logger.Warn().Err(err).Str("prediction_id", id).Msg("pipeline: provider lost the job")
		return s.finish(ctx, job, id, domain.StatusFailed, "", failMsg), nil
	}
	return nil, err
}

func resultFromJob(job *domain.TransformJob) *PollResult {
	res := &PollResult{Status: job.Status, ResultURL: job.ResultURL, Error: job.ErrorMessage}
	if job.Type == domain.TransformTypeVideo {
		res.ActualPrompt = job.CustomPrompt
	}
	return res
}
