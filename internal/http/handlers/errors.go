package handlers

import (
	"errors"
	"net/http"

	"toonify/internal/domain"
	"toonify/internal/providers"
	"toonify/internal/storage"
)

// fail writes the response for err. Messages are fixed per class so
// provider payloads never reach the caller.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	logger := a.Logger.With().Str("user_id", a.currentUserID(r)).Logger()
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request rejected")
	}
	a.error(w, status, code, msg)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated", "authentication required"
	case errors.Is(err, domain.ErrUnknownStyle):
		return http.StatusBadRequest, "unknown_style", "unknown style"
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request", publicMessage(err, "invalid request")
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "insufficient_credits", "insufficient credits"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "conversion not found"
	case errors.Is(err, domain.ErrSynthesis):
		return http.StatusBadGateway, "synthesis_failed", "could not describe the image for video generation"
	case errors.Is(err, domain.ErrConversionFailed):
		return http.StatusBadGateway, "conversion_failed", "the style conversion did not complete"
	case errors.Is(err, storage.ErrNotConfigured):
		return http.StatusServiceUnavailable, "storage_unavailable", "uploads are not available"
	}
	switch providers.KindOf(err) {
	case providers.KindAuth, providers.KindQuota:
		return http.StatusBadGateway, "provider_error", "the conversion provider rejected the request"
	case providers.KindTransient:
		return http.StatusServiceUnavailable, "provider_unavailable", "the conversion provider is temporarily unavailable"
	case providers.KindInvalid:
		return http.StatusBadGateway, "provider_error", "the conversion provider rejected the request"
	}
	return http.StatusInternalServerError, "internal", "internal error"
}

// publicMessage keeps validation details that originate in this service.
func publicMessage(err error, fallback string) string {
	var perr *providers.Error
	if errors.As(err, &perr) {
		return fallback
	}
	return err.Error()
}
