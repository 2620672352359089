// Package qwen calls the DashScope Qwen vision-language model to turn a
// styled image into a motion prompt for video synthesis.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"toonify/internal/infra"
	"toonify/internal/providers"
)

const providerName = "qwen"

var (
	// ErrMissingAPIKey indicates that the client was configured without credentials.
	ErrMissingAPIKey = errors.New("qwen: api key is required")
	// ErrNoText is returned when the model answers without any usable text.
	ErrNoText = errors.New("qwen: response contained no text")
)

// Options configures the DashScope Qwen client.
type Options struct {
	APIKey         string
	BaseURL        string
	Region         string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the DashScope multimodal generation API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type generationRequest struct {
	Model string          `json:"model"`
	Input generationInput `json:"input"`
}

type generationInput struct {
	Messages []generationMessage `json:"messages"`
}

type generationMessage struct {
	Role    string              `json:"role"`
	Content []generationContent `json:"content"`
}

type generationContent struct {
	Type  string `json:"type,omitempty"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content json.RawMessage `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = providers.DashScopeBaseURL(opts.Region)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "qwen-vl-max"
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Synthesize asks the vision model for a motion prompt describing imageURL,
// written in lang. It never invents a prompt: an answer without text is ErrNoText.
func (c *Client) Synthesize(ctx context.Context, imageURL string, lang language.Tag) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return "", providers.Invalid(providerName, "image url is required")
	}
	instruction := BuildInstruction(lang)
	payload := generationRequest{
		Model: c.model,
		Input: generationInput{
			Messages: []generationMessage{
				{Role: "system", Content: []generationContent{{Type: "text", Text: instruction}}},
				{Role: "user", Content: []generationContent{{Type: "image", Image: imageURL}}},
			},
		},
	}

	endpoint := c.baseURL + "/services/aigc/multimodal-generation/generation"
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("qwen: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("qwen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", providers.Transport(providerName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", providers.Transport(providerName, err)
	}

	if resp.StatusCode >= 300 {
		perr := providers.FromResponse(providerName, resp.StatusCode, raw)
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("code", perr.Code).
			Int("instruction_len", len(instruction)).
			Msg("qwen: synthesis request failed")
		return "", perr
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", providers.Invalid(providerName, "decode response: %v", err)
	}
	if decoded.Code != "" {
		return "", &providers.Error{Provider: providerName, Kind: providers.KindInvalid, Code: decoded.Code, Message: decoded.Message}
	}
	text := firstText(decoded)
	if text == "" {
		c.logger.Error().Str("request_id", decoded.RequestID).Msg("qwen: no text in response")
		return "", ErrNoText
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", decoded.RequestID).
		Str("lang", lang.String()).
		Msg("qwen: synthesized video prompt")
	return text, nil
}

// firstText returns the first non-empty text block. The content field is
// either a plain string or a list of typed parts.
func firstText(resp generationResponse) string {
	for _, choice := range resp.Output.Choices {
		raw := choice.Message.Content
		var plain string
		if err := json.Unmarshal(raw, &plain); err == nil {
			if s := strings.TrimSpace(plain); s != "" {
				return s
			}
			continue
		}
		var parts []generationContent
		if err := json.Unmarshal(raw, &parts); err != nil {
			continue
		}
		for _, part := range parts {
			if s := strings.TrimSpace(part.Text); s != "" {
				return s
			}
		}
	}
	return ""
}
