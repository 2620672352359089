package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"toonify/internal/adapter/sqlite"
	"toonify/internal/domain"
	"toonify/internal/providers"
	"toonify/internal/providers/qwen"
	"toonify/internal/providers/wan"
)

func TestVideoPromptOmittedSynthesizesOnce(t *testing.T) {
	h := newHarness(t)
	h.grant(t, "user-1", 5)

	sub, err := h.svc.SubmitVideo(context.Background(), VideoRequest{
		UserID:           "user-1",
		ExistingImageURL: "https://cdn.test/generated-images/disney-style-pred-9.jpg",
		Locale:           language.Japanese,
	})
	require.NoError(t, err)
	assert.Equal(t, "task-1", sub.PredictionID)
	assert.Equal(t, "req-1", sub.RequestID)
	assert.Equal(t, "https://cdn.test/generated-images/disney-style-pred-9.jpg", sub.GeneratedImageURL)

	require.Len(t, h.synth.calls, 1)
	assert.Equal(t, language.Japanese, h.synth.locales[0])
	require.Len(t, h.video.created, 1)
	assert.Equal(t, h.synth.text, h.video.created[0].Prompt)
	assert.Equal(t, 5, h.video.created[0].DurationSeconds)
	assert.Equal(t, "1080P", h.video.created[0].Resolution)
	assert.Zero(t, h.transfer.submits, "existing styled image skips style transfer")
	assert.Equal(t, 0, h.balance(t, "user-1"))

	rows := h.rows(t, "user-1")
	require.Len(t, rows, 1)
	assert.Equal(t, domain.TransformTypeVideo, rows[0].Type)
	assert.Equal(t, 5, rows[0].CreditsUsed)
	assert.Equal(t, h.synth.text, rows[0].CustomPrompt)
	assert.Equal(t, sub.GeneratedImageURL, rows[0].GeneratedImageURL)
}

func TestVideoWithExplicitPromptSkipsSynthesis(t *testing.T) {
	h := newHarness(t)
	h.grant(t, "user-1", 5)
	_, err := h.svc.SubmitVideo(context.Background(), VideoRequest{
		UserID:           "user-1",
		ExistingImageURL: "https://cdn.test/a.jpg",
		Prompt:           "  a boy jumps in a meadow ",
	})
	require.NoError(t, err)
	assert.Empty(t, h.synth.calls)
	assert.Equal(t, "a boy jumps in a meadow", h.video.created[0].Prompt)
}

func TestVideoRunsImageStepFirst(t *testing.T) {
	h := newHarness(t)
	h.grant(t, "user-1", 6)
	h.transfer.queue("pred-1",
		pollStep{err: &providers.Error{Provider: "replicate", Kind: providers.KindTransient}},
		succeeded("pred-1", "https://replicate.delivery/styled.jpg"),
	)

	sub, err := h.svc.SubmitVideo(context.Background(), VideoRequest{UserID: "user-1", Image: jpeg, StyleID: "toy-story"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/generated-images/disney-style-pred-1.jpg", sub.GeneratedImageURL)
	assert.Equal(t, sub.GeneratedImageURL, h.video.created[0].ImageURL)
	assert.Equal(t, 1, h.sleeps)
	assert.Equal(t, 1, h.balance(t, "user-1"), "only the video is charged")
	assert.Len(t, h.rows(t, "user-1"), 1)
}

func TestVideoImageStepTimesOut(t *testing.T) {
	h := newHarness(t)
	h.grant(t, "user-1", 5)

	_, err := h.svc.SubmitVideo(context.Background(), VideoRequest{UserID: "user-1", Image: jpeg, StyleID: "toy-story"})
	require.ErrorIs(t, err, domain.ErrConversionFailed)
	assert.Equal(t, 5, h.transfer.pollHits)
	assert.Equal(t, []string{"pred-1"}, h.transfer.canceled)
	assert.Empty(t, h.video.created)
	assert.Equal(t, 5, h.balance(t, "user-1"))
}

func TestVideoAdmission(t *testing.T) {
	h := newHarness(t)
	h.grant(t, "user-1", 4)

	_, err := h.svc.SubmitVideo(context.Background(), VideoRequest{UserID: "user-1", ExistingImageURL: "https://cdn.test/a.jpg"})
	require.ErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.Empty(t, h.synth.calls)
	assert.Empty(t, h.video.created)
	assert.Empty(t, h.rows(t, "user-1"))
	assert.Equal(t, 4, h.balance(t, "user-1"))

	_, err = h.svc.SubmitVideo(context.Background(), VideoRequest{UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = h.svc.SubmitVideo(context.Background(), VideoRequest{UserID: "user-1", Image: jpeg, StyleID: "not-a-style"})
	assert.ErrorIs(t, err, domain.ErrUnknownStyle)
	assert.Zero(t, h.transfer.submits)
}

func TestVideoSynthesisFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.grant(t, "user-1", 5)
	h.synth.err = qwen.ErrNoText

	_, err := h.svc.SubmitVideo(context.Background(), VideoRequest{UserID: "user-1", ExistingImageURL: "https://cdn.test/a.jpg"})
	require.ErrorIs(t, err, domain.ErrSynthesis)
	assert.True(t, errors.Is(err, qwen.ErrNoText))
	assert.Empty(t, h.video.created, "no fallback prompt is invented")
	assert.Equal(t, 5, h.balance(t, "user-1"))
}

func TestVideoChargeRefusedLeavesFailedRow(t *testing.T) {
	h := newHarness(t, func(o *Options, store *sqlite.Store) {
		o.Credits = racingLedger{store}
	})
	h.grant(t, "user-1", 5)

	_, err := h.svc.SubmitVideo(context.Background(), VideoRequest{UserID: "user-1", ExistingImageURL: "https://cdn.test/a.jpg", Prompt: "a girl waves"})
	require.ErrorIs(t, err, domain.ErrInsufficientCredits)

	rows := h.rows(t, "user-1")
	require.Len(t, rows, 1)
	assert.Equal(t, domain.StatusFailed, rows[0].Status)
	assert.Equal(t, MsgChargeRefused, rows[0].ErrorMessage)
	assert.Zero(t, rows[0].CreditsUsed)
}

func TestPollVideo(t *testing.T) {
	h := newHarness(t)
	h.grant(t, "user-1", 5)
	sub, err := h.svc.SubmitVideo(context.Background(), VideoRequest{UserID: "user-1", ExistingImageURL: "https://cdn.test/a.jpg", Prompt: "a girl waves"})
	require.NoError(t, err)

	res, err := h.svc.PollVideo(context.Background(), "user-1", sub.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, res.Status)

	h.video.getErr = &providers.Error{Provider: "wan", Kind: providers.KindTransient}
	res, err = h.svc.PollVideo(context.Background(), "user-1", sub.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, res.Status)
	h.video.getErr = nil

	h.video.status[sub.PredictionID] = &wan.TaskStatus{
		TaskID:       sub.PredictionID,
		Status:       wan.StateSucceeded,
		VideoURL:     "https://dashscope-result.test/v.mp4",
		ActualPrompt: "a girl waves warmly at the camera",
	}
	res, err = h.svc.PollVideo(context.Background(), "user-1", sub.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, "https://cdn.test/generated-videos/disney-video-task-1.mp4", res.ResultURL)
	assert.Equal(t, "a girl waves warmly at the camera", res.ActualPrompt)

	h.video.status[sub.PredictionID] = &wan.TaskStatus{TaskID: sub.PredictionID, Status: wan.StateFailed}
	res, err = h.svc.PollVideo(context.Background(), "user-1", sub.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status, "terminal rows never change")

	require.Len(t, h.pub.events, 1)
	assert.Equal(t, domain.TransformTypeVideo, h.pub.events[0].Type)
}

func TestPollVideoFailure(t *testing.T) {
	h := newHarness(t)
	h.grant(t, "user-1", 5)
	sub, err := h.svc.SubmitVideo(context.Background(), VideoRequest{UserID: "user-1", ExistingImageURL: "https://cdn.test/a.jpg", Prompt: "p"})
	require.NoError(t, err)

	h.video.status[sub.PredictionID] = &wan.TaskStatus{TaskID: sub.PredictionID, Status: wan.StateFailed, Error: "internal model error"}
	res, err := h.svc.PollVideo(context.Background(), "user-1", sub.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, MsgVideoFailed, res.Error, "provider text is not exposed")
	assert.Equal(t, "transform.failed", h.pub.events[0].RoutingKey())
}

func TestPollVideoFailsTaskUnknownToProvider(t *testing.T) {
	h := newHarness(t)
	h.grant(t, "user-1", 5)
	sub, err := h.svc.SubmitVideo(context.Background(), VideoRequest{UserID: "user-1", ExistingImageURL: "https://cdn.test/a.jpg", Prompt: "a prince bows"})
	require.NoError(t, err)

	h.video.getErr = &providers.Error{Provider: "wan", Kind: providers.KindInvalid, StatusCode: 404}
	res, err := h.svc.PollVideo(context.Background(), "user-1", sub.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, MsgVideoFailed, res.Error)
	assert.Equal(t, "a prince bows", res.ActualPrompt)
	assert.Equal(t, domain.StatusFailed, h.rows(t, "user-1")[0].Status)
}

func TestTerminalVideoPollKeepsPrompt(t *testing.T) {
	h := newHarness(t)
	h.grant(t, "user-1", 5)
	sub, err := h.svc.SubmitVideo(context.Background(), VideoRequest{UserID: "user-1", ExistingImageURL: "https://cdn.test/a.jpg", Prompt: "a girl waves"})
	require.NoError(t, err)

	h.video.status[sub.PredictionID] = &wan.TaskStatus{TaskID: sub.PredictionID, Status: wan.StateSucceeded, VideoURL: "https://dashscope-result.test/v.mp4"}
	res, err := h.svc.PollVideo(context.Background(), "user-1", sub.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, "a girl waves", res.ActualPrompt)

	gets := h.video.gets
	res, err = h.svc.PollVideo(context.Background(), "user-1", sub.PredictionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, "a girl waves", res.ActualPrompt)
	assert.Equal(t, gets, h.video.gets, "stored rows are answered without the provider")
}

func TestPollVideoRejectsImagePrediction(t *testing.T) {
	h := newHarness(t)
	h.grant(t, "user-1", 1)
	sub, err := h.svc.SubmitImage(context.Background(), ImageRequest{UserID: "user-1", Image: jpeg, StyleID: "snow-white"})
	require.NoError(t, err)

	_, err = h.svc.PollVideo(context.Background(), "user-1", sub.PredictionID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, h.video.gets)
}
