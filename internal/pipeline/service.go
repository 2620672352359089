// Package pipeline orchestrates style transfer, prompt synthesis and video
// synthesis around the credit ledger and the transform history.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/text/language"

	"toonify/internal/domain"
	"toonify/internal/events"
	"toonify/internal/infra"
	"toonify/internal/providers/replicate"
	"toonify/internal/providers/wan"
	"toonify/internal/storage"
)

// StyleTransfer is the asynchronous image restyling provider.
type StyleTransfer interface {
	Submit(ctx context.Context, image []byte, mime, prompt string) (string, error)
	Poll(ctx context.Context, id string) (*replicate.Prediction, error)
	Cancel(ctx context.Context, id string) error
}

// PromptSynthesizer describes a styled image as a motion prompt.
type PromptSynthesizer interface {
	Synthesize(ctx context.Context, imageURL string, lang language.Tag) (string, error)
}

// VideoSynthesizer is the asynchronous image-to-video provider.
type VideoSynthesizer interface {
	CreateTask(ctx context.Context, req wan.TaskRequest) (*wan.Task, error)
	GetTask(ctx context.Context, taskID string) (*wan.TaskStatus, error)
}

// Relay copies provider output into durable storage.
type Relay interface {
	Relay(ctx context.Context, sourceURL, nameHint, folder string) storage.RelayResult
}

// User-facing failure messages. Raw provider errors only go to the log.
const (
	MsgStyleFailed   = "The style conversion failed. Please try another photo."
	MsgVideoFailed   = "Video generation failed. Please try again."
	MsgCanceled      = "The conversion was canceled."
	MsgNoOutput      = "The provider finished without producing a result."
	MsgTimedOut      = "Timed out waiting for the result."
	MsgChargeRefused = "Insufficient credits when the job was charged."
)

// Options wires the pipeline's collaborators.
type Options struct {
	Credits  domain.CreditLedger
	History  domain.TransformRepository
	Transfer StyleTransfer
	Prompts  PromptSynthesizer
	Video    VideoSynthesizer
	Relay    Relay
	Uploads  storage.ObjectStore
	Events   events.Publisher
	Logger   *infra.Logger

	// ImageWaitInterval and ImageWaitAttempts bound the styled-image wait
	// inside SubmitVideo.
	ImageWaitInterval time.Duration
	ImageWaitAttempts int
}

// Service runs conversions. It holds no per-request state.
type Service struct {
	credits  domain.CreditLedger
	history  domain.TransformRepository
	transfer StyleTransfer
	prompts  PromptSynthesizer
	video    VideoSynthesizer
	relay    Relay
	uploads  storage.ObjectStore
	events   events.Publisher
	logger   *infra.Logger

	waitInterval time.Duration
	waitAttempts int
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// New builds a Service with defaults for unset options.
func New(opts Options) *Service {
	s := &Service{
		credits:      opts.Credits,
		history:      opts.History,
		transfer:     opts.Transfer,
		prompts:      opts.Prompts,
		video:        opts.Video,
		relay:        opts.Relay,
		uploads:      opts.Uploads,
		events:       opts.Events,
		logger:       opts.Logger,
		waitInterval: opts.ImageWaitInterval,
		waitAttempts: opts.ImageWaitAttempts,
		sleep:        sleepCtx,
		now:          time.Now,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.logger == nil {
		s.logger = infra.NopLogger()
	}
	if s.waitInterval <= 0 {
		s.waitInterval = 2 * time.Second
	}
	if s.waitAttempts <= 0 {
		s.waitAttempts = 60
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
