package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"toonify/internal/domain"
	"toonify/internal/providers"
	"toonify/internal/providers/replicate"
	"toonify/internal/providers/wan"
	"toonify/internal/storage"
	"toonify/internal/styles"
)

// VideoRequest asks for an animated clip. Either Image with StyleID or an
// already styled ExistingImageURL is required. An empty Prompt is
// synthesized from the styled image in Locale.
type VideoRequest struct {
	UserID           string
	Image            []byte
	MIME             string
	StyleID          string
	Prompt           string
	ExistingImageURL string
	Locale           language.Tag
}

// VideoSubmission is returned once the video task was accepted and charged.
type VideoSubmission struct {
	PredictionID      string
	RequestID         string
	GeneratedImageURL string
	Remaining         int
}

// SubmitVideo runs the styled-image step when needed, synthesizes a prompt
// when none is given, creates the video task and charges for it.
func (s *Service) SubmitVideo(ctx context.Context, req VideoRequest) (*VideoSubmission, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	imageURL := strings.TrimSpace(req.ExistingImageURL)
	var tmpl styles.Template
	if imageURL == "" {
		if len(req.Image) == 0 {
			return nil, fmt.Errorf("%w: image or existingImageUrl is required", domain.ErrInvalidRequest)
		}
		var ok bool
		if tmpl, ok = styles.Lookup(req.StyleID); !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStyle, req.StyleID)
		}
	} else if req.StyleID != "" {
		if _, ok := styles.Lookup(req.StyleID); !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStyle, req.StyleID)
		}
	}
	if err := s.admit(ctx, req.UserID, domain.VideoCreditCost); err != nil {
		return nil, err
	}

	if imageURL == "" {
		var err error
		if imageURL, err = s.styledImage(ctx, req, tmpl); err != nil {
			return nil, err
		}
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		synthesized, err := s.prompts.Synthesize(ctx, imageURL, req.Locale)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("pipeline: prompt synthesis")
			return nil, fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
		}
		prompt = synthesized
	}

	task, err := s.video.CreateTask(ctx, wan.TaskRequest{
		ImageURL:        imageURL,
		Prompt:          prompt,
		DurationSeconds: 5,
		Resolution:      "1080P",
	})
	if err != nil {
		return nil, err
	}

	job := &domain.TransformJob{
		UserID:            req.UserID,
		Type:              domain.TransformTypeVideo,
		StyleID:           req.StyleID,
		ProviderJobID:     task.TaskID,
		GeneratedImageURL: imageURL,
		CustomPrompt:      prompt,
		CreditsUsed:       domain.VideoCreditCost,
	}
	remaining, err := s.charge(ctx, req.UserID, domain.VideoCreditCost, "video transform", task.TaskID)
	if err != nil {
		// No cancel exists for video tasks; keep an audit row of the refused job.
		job.CreditsUsed = 0
		s.record(ctx, job)
		s.finish(ctx, job, task.TaskID, domain.StatusFailed, "", MsgChargeRefused)
		return nil, err
	}
	s.record(ctx, job)
	s.logger.Info().
		Str("user_id", req.UserID).
		Str("task_id", task.TaskID).
		Str("request_id", task.RequestID).
		Int("remaining", remaining).
		Msg("pipeline: video conversion submitted")
	return &VideoSubmission{
		PredictionID:      task.TaskID,
		RequestID:         task.RequestID,
		GeneratedImageURL: imageURL,
		Remaining:         remaining,
	}, nil
}

// styledImage runs the style transfer to completion with a bounded wait and
// returns the relayed (or provider) URL. It is neither charged nor recorded.
func (s *Service) styledImage(ctx context.Context, req VideoRequest, tmpl styles.Template) (string, error) {
	mime := req.MIME
	if mime == "" {
		mime = http.DetectContentType(req.Image)
	}
	predictionID, err := s.transfer.Submit(ctx, req.Image, mime, tmpl.Prompt)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < s.waitAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.waitInterval); err != nil {
				return "", err
			}
		}
		pred, err := s.transfer.Poll(ctx, predictionID)
		if err != nil {
			if providers.IsRetryable(err) {
				continue
			}
			return "", err
		}
		switch pred.Status {
		case replicate.StatusSucceeded:
			if pred.OutputURL == "" {
				return "", fmt.Errorf("%w: styled image has no output", domain.ErrConversionFailed)
			}
			return s.relayOrFallback(ctx, pred.OutputURL, "disney-style-"+predictionID+".jpg", storage.FolderGeneratedImages), nil
		case replicate.StatusFailed, replicate.StatusCanceled:
			s.logger.Warn().Str("prediction_id", predictionID).Str("provider_error", pred.Error).Msg("pipeline: styled image failed")
			return "", fmt.Errorf("%w: styled image %s", domain.ErrConversionFailed, pred.Status)
		}
	}
	if err := s.transfer.Cancel(context.WithoutCancel(ctx), predictionID); err != nil {
		s.logger.Warn().Err(err).Str("prediction_id", predictionID).Msg("pipeline: cancel stalled styled image")
	}
	return "", fmt.Errorf("%w: styled image not ready after %d polls", domain.ErrConversionFailed, s.waitAttempts)
}

// PollVideo reports the state of a video task and persists terminal transitions.
func (s *Service) PollVideo(ctx context.Context, userID, taskID string) (*PollResult, error) {
	job, done, err := s.lookupOwned(ctx, userID, taskID, domain.TransformTypeVideo)
	if err != nil || done != nil {
		return done, err
	}

	status, err := s.video.GetTask(ctx, taskID)
	if err != nil {
		res, perr := s.pollError(ctx, job, taskID, err, MsgVideoFailed)
		if res != nil && job != nil {
			res.ActualPrompt = job.CustomPrompt
		}
		return res, perr
	}
	var result *PollResult
	switch status.Status {
	case wan.StateSucceeded:
		if status.VideoURL == "" {
			result = s.finish(ctx, job, taskID, domain.StatusFailed, "", MsgNoOutput)
			break
		}
		url := s.relayOrFallback(ctx, status.VideoURL, "disney-video-"+taskID+".mp4", storage.FolderGeneratedVideos)
		result = s.finish(ctx, job, taskID, domain.StatusCompleted, url, "")
	case wan.StateFailed:
		s.logger.Warn().Str("task_id", taskID).Str("provider_error", status.Error).Msg("pipeline: video task failed")
		result = s.finish(ctx, job, taskID, domain.StatusFailed, "", MsgVideoFailed)
	case wan.StateCanceled:
		result = s.finish(ctx, job, taskID, domain.StatusFailed, "", MsgCanceled)
	default:
		result = &PollResult{Status: domain.StatusProcessing}
	}
	result.ActualPrompt = status.ActualPrompt
	if result.ActualPrompt == "" && job != nil {
		result.ActualPrompt = job.CustomPrompt
	}
	return result, nil
}
