// Package wan drives DashScope's asynchronous Wan image-to-video tasks.
package wan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"toonify/internal/infra"
	"toonify/internal/providers"
)

const providerName = "wan"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("wan: api key is required")

// TaskState is the DashScope task lifecycle value.
type TaskState string

const (
	StatePending   TaskState = "PENDING"
	StateRunning   TaskState = "RUNNING"
	StateSucceeded TaskState = "SUCCEEDED"
	StateFailed    TaskState = "FAILED"
	StateCanceled  TaskState = "CANCELED"
	StateUnknown   TaskState = "UNKNOWN"
)

// Terminal reports whether the task will not change any more.
func (s TaskState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCanceled
}

// TaskRequest describes one image-to-video synthesis.
type TaskRequest struct {
	ImageURL        string
	Prompt          string
	DurationSeconds int
	Resolution      string
	Audio           *bool
}

// Task identifies an accepted asynchronous task.
type Task struct {
	TaskID    string
	RequestID string
}

// TaskStatus is a snapshot of a task.
type TaskStatus struct {
	TaskID       string
	Status       TaskState
	VideoURL     string
	ActualPrompt string
	Error        string
	SubmitTime   string
	EndTime      string
}

// Options configures the Wan client. MaxAttempts counts the first try.
type Options struct {
	APIKey         string
	BaseURL        string
	Region         string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	MaxAttempts    int
	RetryBase      time.Duration
	RetryCap       time.Duration
}

// Client performs HTTP calls to the DashScope video synthesis API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	logger      *infra.Logger
	maxAttempts int
	retryBase   time.Duration
	retryCap    time.Duration
}

type createRequest struct {
	Model      string           `json:"model"`
	Input      createInput      `json:"input"`
	Parameters createParameters `json:"parameters"`
}

type createInput struct {
	Prompt string `json:"prompt,omitempty"`
	ImgURL string `json:"img_url"`
}

type createParameters struct {
	Resolution   string `json:"resolution"`
	Duration     int    `json:"duration"`
	PromptExtend bool   `json:"prompt_extend"`
	Audio        bool   `json:"audio"`
	Watermark    bool   `json:"watermark"`
}

type taskEnvelope struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		TaskID       string `json:"task_id"`
		TaskStatus   string `json:"task_status"`
		VideoURL     string `json:"video_url"`
		ActualPrompt string `json:"actual_prompt"`
		SubmitTime   string `json:"submit_time"`
		EndTime      string `json:"end_time"`
		Code         string `json:"code"`
		Message      string `json:"message"`
	} `json:"output"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = providers.DashScopeBaseURL(opts.Region)
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "wan2.5-i2v-preview"
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	c := &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		model:       model,
		httpClient:  httpClient,
		logger:      logger,
		maxAttempts: opts.MaxAttempts,
		retryBase:   opts.RetryBase,
		retryCap:    opts.RetryCap,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 4
	}
	if c.retryBase <= 0 {
		c.retryBase = time.Second
	}
	if c.retryCap <= 0 {
		c.retryCap = 10 * time.Second
	}
	return c, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// CreateTask submits an image-to-video task and returns its identifiers.
func (c *Client) CreateTask(ctx context.Context, req TaskRequest) (*Task, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, providers.Invalid(providerName, "image url is required")
	}
	params := createParameters{
		Resolution:   req.Resolution,
		Duration:     req.DurationSeconds,
		PromptExtend: true,
		Audio:        req.Audio == nil || *req.Audio,
	}
	if params.Resolution == "" {
		params.Resolution = "1080P"
	}
	if params.Duration <= 0 {
		params.Duration = 5
	}
	body, err := json.Marshal(createRequest{
		Model:      c.model,
		Input:      createInput{Prompt: req.Prompt, ImgURL: req.ImageURL},
		Parameters: params,
	})
	if err != nil {
		return nil, fmt.Errorf("wan: encode request: %w", err)
	}

	var env taskEnvelope
	err = c.withRetry(ctx, "create", func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/services/aigc/video-generation/video-synthesis", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("wan: build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-DashScope-Async", "enable")
		return c.do(httpReq, &env)
	})
	if err != nil {
		return nil, err
	}
	if env.Output.TaskID == "" {
		return nil, providers.Invalid(providerName, "response missing task_id")
	}
	c.logger.Info().
		Str("task_id", env.Output.TaskID).
		Str("request_id", env.RequestID).
		Str("model", c.model).
		Msg("wan: task created")
	return &Task{TaskID: env.Output.TaskID, RequestID: env.RequestID}, nil
}

// GetTask fetches the current state of taskID.
func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskStatus, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, providers.Invalid(providerName, "task id is required")
	}

	var env taskEnvelope
	err := c.withRetry(ctx, "get", func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+url.PathEscape(taskID), nil)
		if err != nil {
			return fmt.Errorf("wan: build request: %w", err)
		}
		return c.do(httpReq, &env)
	})
	if err != nil {
		return nil, err
	}

	state := TaskState(strings.ToUpper(env.Output.TaskStatus))
	switch state {
	case StatePending, StateRunning, StateSucceeded, StateFailed, StateCanceled:
	default:
		state = StateUnknown
	}
	status := &TaskStatus{
		TaskID:       taskID,
		Status:       state,
		VideoURL:     env.Output.VideoURL,
		ActualPrompt: env.Output.ActualPrompt,
		SubmitTime:   env.Output.SubmitTime,
		EndTime:      env.Output.EndTime,
	}
	if state == StateFailed || state == StateCanceled {
		status.Error = strings.TrimSpace(env.Output.Message)
		if status.Error == "" {
			status.Error = env.Output.Code
		}
	}
	return status, nil
}

// withRetry repeats fn while it fails with a network-class error. Any other
// failure, HTTP errors included, is returned at once. When attempts run out
// the last error is returned as is.
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1),
		retry.WithCappedDuration(c.retryCap, retry.NewExponential(c.retryBase)))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() == nil && providers.IsNetwork(err) {
			c.logger.Warn().
				Err(err).
				Str("op", op).
				Int("attempt", attempt).
				Int("max_attempts", c.maxAttempts).
				Msg("wan: network error, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(req *http.Request, out *taskEnvelope) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
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
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("code", perr.Code).
			Str("path", req.URL.Path).
			Msg("wan: request rejected")
		return perr
	}
	*out = taskEnvelope{}
	if err := json.Unmarshal(raw, out); err != nil {
		return providers.Invalid(providerName, "decode response: %v", err)
	}
	if out.Code != "" {
		return &providers.Error{Provider: providerName, Kind: providers.KindInvalid, Code: out.Code, Message: out.Message}
	}
	return nil
}
