package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toonify/internal/domain"
	"toonify/internal/providers"
)

// Reconcile moves a processing row forward on behalf of a caller that
// stopped polling. Rows created before giveUpBefore that are still
// processing, or whose poll fails permanently, are abandoned.
func (s *Service) Reconcile(ctx context.Context, job domain.TransformJob, giveUpBefore time.Time) (*PollResult, error) {
	if job.Status.Terminal() {
		return resultFromJob(&job), nil
	}
	var (
		res *PollResult
		err error
	)
	switch job.Type {
	case domain.TransformTypeImage:
		res, err = s.PollImage(ctx, job.UserID, job.ProviderJobID)
	case domain.TransformTypeVideo:
		res, err = s.PollVideo(ctx, job.UserID, job.ProviderJobID)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidRequest, job.Type)
	}
	if err != nil {
		if job.CreatedAt.Before(giveUpBefore) && permanent(err) {
			return s.Abandon(ctx, job.UserID, job.ProviderJobID)
		}
		return nil, err
	}
	if res.Status == domain.StatusProcessing && job.CreatedAt.Before(giveUpBefore) {
		return s.Abandon(ctx, job.UserID, job.ProviderJobID)
	}
	return res, nil
}

// permanent reports a poll failure that repeating will not fix.
func permanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !providers.IsRetryable(err)
}
