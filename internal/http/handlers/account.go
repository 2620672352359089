package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"toonify/internal/domain"
	"toonify/internal/pipeline"
	"toonify/internal/storage"
	"toonify/internal/styles"
)

type taskDTO struct {
	ID                string                 `json:"id"`
	Type              domain.TransformType   `json:"type"`
	StyleID           string                 `json:"styleId"`
	PredictionID      string                 `json:"predictionId"`
	Status            domain.TransformStatus `json:"status"`
	OriginalImageURL  string                 `json:"originalImageUrl,omitempty"`
	GeneratedImageURL string                 `json:"generatedImageUrl,omitempty"`
	ResultURL         string                 `json:"resultUrl,omitempty"`
	ErrorMessage      string                 `json:"errorMessage,omitempty"`
	CustomPrompt      string                 `json:"customPrompt,omitempty"`
	CreditsUsed       int                    `json:"creditsUsed"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

type historyResponse struct {
	Tasks      []taskDTO           `json:"tasks"`
	Pagination pipeline.Pagination `json:"pagination"`
}

func (a *App) History(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthenticated", "missing user context")
		return
	}
	q := r.URL.Query()
	page, err := intParam(q.Get("page"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "page must be a number")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "limit must be a number")
		return
	}
	filter := domain.ListFilter{
		UserID: userID,
		Page:   page,
		Limit:  limit,
		Status: domain.TransformStatus(filterParam(q.Get("status"))),
		Type:   domain.TransformType(filterParam(q.Get("type"))),
	}
	result, err := a.Pipeline.History(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	tasks := make([]taskDTO, 0, len(result.Tasks))
	for _, job := range result.Tasks {
		tasks = append(tasks, taskDTO{
			ID:                job.ID,
			Type:              job.Type,
			StyleID:           job.StyleID,
			PredictionID:      job.ProviderJobID,
			Status:            job.Status,
			OriginalImageURL:  job.OriginalImageURL,
			GeneratedImageURL: job.GeneratedImageURL,
			ResultURL:         job.ResultURL,
			ErrorMessage:      job.ErrorMessage,
			CustomPrompt:      job.CustomPrompt,
			CreditsUsed:       job.CreditsUsed,
			CreatedAt:         job.CreatedAt,
			UpdatedAt:         job.UpdatedAt,
		})
	}
	a.json(w, http.StatusOK, historyResponse{Tasks: tasks, Pagination: result.Pagination})
}

func (a *App) Credits(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthenticated", "missing user context")
		return
	}
	balance, err := a.Pipeline.Credits(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"credits": balance})
}

func (a *App) PresignUpload(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthenticated", "missing user context")
		return
	}
	var req storage.UploadRequest
	if !a.decode(w, r, &req) {
		return
	}
	upload, err := a.Pipeline.PresignUpload(r.Context(), userID, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, upload)
}

func (a *App) Styles(w http.ResponseWriter, r *http.Request) {
	items := styles.All()
	if c := r.URL.Query().Get("category"); c != "" {
		items = styles.ByCategory(styles.Category(c))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// filterParam maps the "all" sentinel to no filter.
func filterParam(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "all" {
		return ""
	}
	return raw
}
