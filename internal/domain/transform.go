package domain

import "time"

// TransformType distinguishes image-only conversions from image-to-video ones.
type TransformType string

const (
	TransformTypeImage TransformType = "image"
	TransformTypeVideo TransformType = "video"
)

// Valid reports whether t is a known transform type.
func (t TransformType) Valid() bool {
	return t == TransformTypeImage || t == TransformTypeVideo
}

// TransformStatus is the lifecycle state of a conversion. Transitions only move
// forward: processing -> completed | failed.
type TransformStatus string

const (
	StatusProcessing TransformStatus = "processing"
	StatusCompleted  TransformStatus = "completed"
	StatusFailed     TransformStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s TransformStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s TransformStatus) Valid() bool {
	return s == StatusProcessing || s.Terminal()
}

// Credit schedule per conversion type.
const (
	ImageCreditCost = 1
	VideoCreditCost = 5
)

// TransformJob is one persisted conversion attempt.
type TransformJob struct {
	ID                string
	UserID            string
	Type              TransformType
	StyleID           string
	ProviderJobID     string
	Status            TransformStatus
	OriginalImageURL  string
	GeneratedImageURL string
	ResultURL         string
	ErrorMessage      string
	CustomPrompt      string
	CreditsUsed       int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Pollable reports whether the row carries the provider id pollers key on.
func (j *TransformJob) Pollable() bool {
	return j != nil && j.ProviderJobID != ""
}

// ListFilter scopes a history query to one user. Empty Status/Type mean no filter.
type ListFilter struct {
	UserID string
	Page   int
	Limit  int
	Status TransformStatus
	Type   TransformType
}

// Offset returns the row offset for the requested page.
func (f ListFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// CreditTransaction is one audit entry of the credit ledger.
type CreditTransaction struct {
	ID            int64
	UserID        string
	Amount        int
	Reason        string
	ProviderJobID string
	CreatedAt     time.Time
}
