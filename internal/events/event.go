// Package events announces terminal transform transitions to other services.
package events

import (
	"context"
	"time"

	"toonify/internal/domain"
)

// TransformEvent is published once per row when it leaves processing.
type TransformEvent struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"userId"`
	Type         domain.TransformType   `json:"type"`
	PredictionID string                 `json:"predictionId"`
	Status       domain.TransformStatus `json:"status"`
	ResultURL    string                 `json:"resultUrl,omitempty"`
	Error        string                 `json:"error,omitempty"`
	CreditsUsed  int                    `json:"creditsUsed"`
	OccurredAt   time.Time              `json:"occurredAt"`
}

// RoutingKey is transform.completed or transform.failed.
func (e TransformEvent) RoutingKey() string {
	return "transform." + string(e.Status)
}

// FromJob builds the event for a terminal job.
func FromJob(job *domain.TransformJob, at time.Time) TransformEvent {
	return TransformEvent{
		ID:           job.ID,
		UserID:       job.UserID,
		Type:         job.Type,
		PredictionID: job.ProviderJobID,
		Status:       job.Status,
		ResultURL:    job.ResultURL,
		Error:        job.ErrorMessage,
		CreditsUsed:  job.CreditsUsed,
		OccurredAt:   at.UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt TransformEvent) error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, TransformEvent) error { return nil }
