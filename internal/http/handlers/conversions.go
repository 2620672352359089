package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"toonify/internal/domain"
	"toonify/internal/middleware"
	"toonify/internal/pipeline"
)

var errImageEncoding = errors.New("image must be base64 or a data URL")

type imageTransformRequest struct {
	Image   string `json:"image"`
	StyleID string `json:"styleId"`
}

type imageTransformResponse struct {
	PredictionID     string `json:"predictionId"`
	RemainingCredits int    `json:"remainingCredits"`
}

type videoTransformRequest struct {
	Image            string `json:"image"`
	StyleID          string `json:"styleId"`
	Prompt           string `json:"prompt"`
	ExistingImageURL string `json:"existingImageUrl"`
}

type videoTransformResponse struct {
	PredictionID      string `json:"predictionId"`
	RequestID         string `json:"requestId"`
	GeneratedImageURL string `json:"generatedImageUrl"`
	RemainingCredits  int    `json:"remainingCredits"`
}

type pollResponse struct {
	Status       domain.TransformStatus `json:"status"`
	ResultURL    string                 `json:"resultUrl,omitempty"`
	ActualPrompt string                 `json:"actualPrompt,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

func (a *App) TransformImage(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthenticated", "missing user context")
		return
	}
	var req imageTransformRequest
	if !a.decode(w, r, &req) {
		return
	}
	image, mime, err := decodeImage(req.Image)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	sub, err := a.Pipeline.SubmitImage(r.Context(), pipeline.ImageRequest{
		UserID:  userID,
		Image:   image,
		MIME:    mime,
		StyleID: req.StyleID,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, imageTransformResponse{PredictionID: sub.PredictionID, RemainingCredits: sub.Remaining})
}

func (a *App) ImageStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthenticated", "missing user context")
		return
	}
	res, err := a.Pipeline.PollImage(r.Context(), userID, chi.URLParam(r, "predictionId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toPollResponse(res))
}

func (a *App) TransformVideo(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthenticated", "missing user context")
		return
	}
	var req videoTransformRequest
	if !a.decode(w, r, &req) {
		return
	}
	vr := pipeline.VideoRequest{
		UserID:           userID,
		StyleID:          req.StyleID,
		Prompt:           strings.TrimSpace(req.Prompt),
		ExistingImageURL: strings.TrimSpace(req.ExistingImageURL),
		Locale:           middleware.LocaleFromContext(r.Context()),
	}
	if vr.ExistingImageURL == "" && req.Image != "" {
		image, mime, err := decodeImage(req.Image)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		vr.Image, vr.MIME = image, mime
	}
	sub, err := a.Pipeline.SubmitVideo(r.Context(), vr)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, videoTransformResponse{
		PredictionID:      sub.PredictionID,
		RequestID:         sub.RequestID,
		GeneratedImageURL: sub.GeneratedImageURL,
		RemainingCredits:  sub.Remaining,
	})
}

func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthenticated", "missing user context")
		return
	}
	res, err := a.Pipeline.PollVideo(r.Context(), userID, chi.URLParam(r, "predictionId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toPollResponse(res))
}

// AbandonTransform records that the caller stopped waiting.
func (a *App) AbandonTransform(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthenticated", "missing user context")
		return
	}
	res, err := a.Pipeline.Abandon(r.Context(), userID, chi.URLParam(r, "predictionId"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toPollResponse(res))
}

func toPollResponse(res *pipeline.PollResult) pollResponse {
	return pollResponse{
		Status:       res.Status,
		ResultURL:    res.ResultURL,
		ActualPrompt: res.ActualPrompt,
		Error:        res.Error,
	}
}

// decodeImage accepts raw base64 or a data URL. The MIME type is empty for
// raw base64 and sniffed downstream.
func decodeImage(raw string) ([]byte, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", errors.New("image is required")
	}
	var mime string
	if rest, ok := strings.CutPrefix(raw, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, "", errImageEncoding
		}
		mime = strings.TrimSuffix(header, ";base64")
		raw = payload
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(raw); err != nil {
			return nil, "", errImageEncoding
		}
	}
	if len(data) == 0 {
		return nil, "", errors.New("image is required")
	}
	return data, mime, nil
}
