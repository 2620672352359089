// Package replicate wraps the Replicate predictions API for the
// flux-kontext-pro style-transfer model.
package replicate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"toonify/internal/infra"
	"toonify/internal/providers"
)

const providerName = "replicate"

// ErrMissingAPIToken indicates that the client was configured without credentials.
var ErrMissingAPIToken = errors.New("replicate: api token is required")

// Status values reported by the predictions API.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether the prediction will not change any more.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Options configures the Replicate client.
type Options struct {
	APIToken       string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Replicate predictions API.
type Client struct {
	apiToken   string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// Prediction is the normalized state of a remote prediction.
type Prediction struct {
	ID        string
	Status    Status
	OutputURL string
	Error     string
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type predictionInput struct {
	Prompt           string `json:"prompt"`
	InputImage       string `json:"input_image"`
	AspectRatio      string `json:"aspect_ratio"`
	OutputFormat     string `json:"output_format"`
	SafetyTolerance  int    `json:"safety_tolerance"`
	PromptUpsampling bool   `json:"prompt_upsampling"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("replicate: invalid base url: %w", err)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "black-forest-labs/flux-kontext-pro"
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		apiToken:   strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiToken != ""
}

// Submit starts a style-transfer prediction and returns its id.
func (c *Client) Submit(ctx context.Context, image []byte, mime, prompt string) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIToken
	}
	if len(image) == 0 {
		return "", providers.Invalid(providerName, "image is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", providers.Invalid(providerName, "prompt is required")
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	payload := predictionRequest{
		Version: c.model,
		Input: predictionInput{
			Prompt:           CleanPrompt(prompt),
			InputImage:       "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image),
			AspectRatio:      "match_input_image",
			OutputFormat:     "jpg",
			SafetyTolerance:  2,
			PromptUpsampling: false,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("replicate: encode request: %w", err)
	}
	var decoded predictionResponse
	if err := c.do(ctx, http.MethodPost, "/predictions", body, &decoded); err != nil {
		return "", err
	}
	if decoded.ID == "" {
		return "", providers.Invalid(providerName, "response carried no prediction id")
	}
	c.logger.Debug().Str("prediction_id", decoded.ID).Str("model", c.model).Msg("replicate: prediction created")
	return decoded.ID, nil
}

// Poll fetches the current state of a prediction once.
func (c *Client) Poll(ctx context.Context, id string) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIToken
	}
	var decoded predictionResponse
	if err := c.do(ctx, http.MethodGet, "/predictions/"+url.PathEscape(id), nil, &decoded); err != nil {
		return nil, err
	}
	return &Prediction{
		ID:        decoded.ID,
		Status:    Status(decoded.Status),
		OutputURL: outputURL(decoded.Output),
		Error:     errorText(decoded.Error),
	}, nil
}

// Cancel asks Replicate to stop a prediction.
func (c *Client) Cancel(ctx context.Context, id string) error {
	if !c.HasCredentials() {
		return ErrMissingAPIToken
	}
	return c.do(ctx, http.MethodPost, "/predictions/"+url.PathEscape(id)+"/cancel", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providers.Transport(providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Transport(providerName, err)
	}
	if resp.StatusCode >= 300 {
		perr := providers.FromResponse(providerName, resp.StatusCode, raw)
		c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Str("kind", string(perr.Kind)).Msg("replicate: request failed")
		return perr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return providers.Invalid(providerName, "decode response: %v", err)
	}
	return nil
}

var promptReplacer = strings.NewReplacer(
	"princess", "character",
	"romance", "story",
	"elegant", "beautiful",
	"ballroom", "dance hall",
	"glass slipper", "magic shoe",
	"adult", "mature",
	"sexy", "attractive",
	"sensual", "graceful",
	"intimate", "personal",
)

// CleanPrompt lowercases the prompt and swaps words that trip the model's
// content filter for neutral ones.
func CleanPrompt(prompt string) string {
	return promptReplacer.Replace(strings.ToLower(strings.TrimSpace(prompt)))
}

// outputURL accepts both the single-URL and the URL-list output shapes.
func outputURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, u := range list {
			if u = strings.TrimSpace(u); u != "" {
				return u
			}
		}
	}
	return ""
}

func errorText(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	default:
		b, _ := json.Marshal(e)
		return string(b)
	}
}
