// Package convclient is a Go client for the toonify conversion API,
// including the poll loop that drives a conversion to completion.
package convclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Status values reported by the API.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("toonify: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Retryable reports whether repeating the same request may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsRetryable reports whether err is a transport failure or a retryable API error.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) || errors.As(err, &urlErr)
}

// Client calls the conversion API with a bearer token.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New returns a client with a 30 second HTTP timeout.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ImageSubmission is the accepted image conversion.
type ImageSubmission struct {
	PredictionID     string `json:"predictionId"`
	RemainingCredits int    `json:"remainingCredits"`
}

// VideoRequest starts a video conversion. Set Image and StyleID, or
// ExistingImageURL. An empty Prompt is written by the service.
type VideoRequest struct {
	Image            []byte `json:"-"`
	MIME             string `json:"-"`
	StyleID          string `json:"styleId,omitempty"`
	Prompt           string `json:"prompt,omitempty"`
	ExistingImageURL string `json:"existingImageUrl,omitempty"`
	// Locale is sent as X-Locale and selects the synthesized prompt language.
	Locale string `json:"-"`
}

// VideoSubmission is the accepted video conversion.
type VideoSubmission struct {
	PredictionID      string `json:"predictionId"`
	RequestID         string `json:"requestId"`
	GeneratedImageURL string `json:"generatedImageUrl"`
	RemainingCredits  int    `json:"remainingCredits"`
}

// Status is one poll result.
type Status struct {
	Status       string `json:"status"`
	ResultURL    string `json:"resultUrl,omitempty"`
	ActualPrompt string `json:"actualPrompt,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Terminal reports whether the conversion finished.
func (s *Status) Terminal() bool {
	return s != nil && (s.Status == StatusCompleted || s.Status == StatusFailed)
}

// HistoryQuery filters History. Zero values use server defaults.
type HistoryQuery struct {
	Page   int
	Limit  int
	Status string
	Type   string
}

// Task is one history row.
type Task struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	StyleID           string    `json:"styleId"`
	PredictionID      string    `json:"predictionId"`
	Status            string    `json:"status"`
	GeneratedImageURL string    `json:"generatedImageUrl,omitempty"`
	ResultURL         string    `json:"resultUrl,omitempty"`
	ErrorMessage      string    `json:"errorMessage,omitempty"`
	CreditsUsed       int       `json:"creditsUsed"`
	CreatedAt         time.Time `json:"createdAt"`
}

// HistoryPage is one page of history.
type HistoryPage struct {
	Tasks      []Task `json:"tasks"`
	Pagination struct {
		Total      int `json:"total"`
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
}

func (c *Client) SubmitImage(ctx context.Context, image []byte, mime, styleID string) (*ImageSubmission, error) {
	body := map[string]string{"image": dataURL(image, mime), "styleId": styleID}
	var out ImageSubmission
	if err := c.do(ctx, http.MethodPost, "/v1/transform/image", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitVideo(ctx context.Context, req VideoRequest) (*VideoSubmission, error) {
	payload := struct {
		VideoRequest
		Image string `json:"image,omitempty"`
	}{VideoRequest: req}
	if len(req.Image) > 0 {
		payload.Image = dataURL(req.Image, req.MIME)
	}
	var header http.Header
	if req.Locale != "" {
		header = http.Header{"X-Locale": []string{req.Locale}}
	}
	var out VideoSubmission
	if err := c.do(ctx, http.MethodPost, "/v1/transform/video", header, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PollImage(ctx context.Context, predictionID string) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/v1/transform/image/"+url.PathEscape(predictionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PollVideo(ctx context.Context, predictionID string) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/v1/transform/video/"+url.PathEscape(predictionID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Abandon tells the service the caller stopped waiting.
func (c *Client) Abandon(ctx context.Context, predictionID string) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodPost, "/v1/transform/"+url.PathEscape(predictionID)+"/abandon", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) History(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	path := "/v1/transform/history"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out HistoryPage
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Credits(ctx context.Context) (int, error) {
	var out struct {
		Credits int `json:"credits"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/credits", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Credits, nil
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("toonify: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("toonify: build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code, apiErr.Message = envelope.Error.Code, envelope.Error.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("toonify: decode response: %w", err)
	}
	return nil
}

func dataURL(image []byte, mime string) string {
	if mime == "" {
		mime = http.DetectContentType(image)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}
