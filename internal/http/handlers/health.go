package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health is the liveness probe; it never touches dependencies.
func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "service": "toonify"})
}

// Ready reports 503 while the database does not answer.
func (a *App) Ready(w http.ResponseWriter, r *http.Request) {
	if a.Ping == nil {
		a.json(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.Ping(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("readiness: database ping failed")
		a.error(w, http.StatusServiceUnavailable, "not_ready", "database unavailable")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ready"})
}
