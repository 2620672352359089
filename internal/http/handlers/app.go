package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"toonify/internal/infra"
	"toonify/internal/middleware"
	"toonify/internal/pipeline"
)

// maxBodyBytes bounds JSON bodies carrying base64 images.
const maxBodyBytes = 12 << 20

type App struct {
	Pipeline *pipeline.Service
	Logger   *infra.Logger
	// Ping backs the readiness probe. Nil means always ready.
	Ping func(ctx context.Context) error
}

func NewApp(svc *pipeline.Service, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{Pipeline: svc, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: msg}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}
