package wan

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toonify/internal/providers"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(t *testing.T, fn roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:     "sk-test",
		HTTPClient: &http.Client{Transport: fn},
		RetryBase:  time.Millisecond,
		RetryCap:   2 * time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func connReset() error {
	return &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}
}

func TestCreateTaskPayload(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "dashscope.aliyuncs.com", r.URL.Host)
		assert.Equal(t, "/api/v1/services/aigc/video-generation/video-synthesis", r.URL.Path)
		assert.Equal(t, "enable", r.Header.Get("X-DashScope-Async"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &captured))
		return jsonResponse(http.StatusOK, `{"request_id":"req-9","output":{"task_id":"task-1","task_status":"PENDING"}}`), nil
	})

	task, err := client.CreateTask(context.Background(), TaskRequest{ImageURL: "https://cdn.test/a.jpg", Prompt: "a girl waves"})
	require.NoError(t, err)
	assert.Equal(t, &Task{TaskID: "task-1", RequestID: "req-9"}, task)

	assert.Equal(t, "wan2.5-i2v-preview", captured["model"])
	input := captured["input"].(map[string]any)
	assert.Equal(t, "https://cdn.test/a.jpg", input["img_url"])
	assert.Equal(t, "a girl waves", input["prompt"])
	params := captured["parameters"].(map[string]any)
	assert.Equal(t, "1080P", params["resolution"])
	assert.Equal(t, float64(5), params["duration"])
	assert.Equal(t, true, params["prompt_extend"])
	assert.Equal(t, true, params["audio"])
	assert.Equal(t, false, params["watermark"])
}

func TestCreateTaskRetriesNetworkErrors(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return nil, connReset()
		}
		return jsonResponse(http.StatusOK, `{"output":{"task_id":"task-2"}}`), nil
	})

	task, err := client.CreateTask(context.Background(), TaskRequest{ImageURL: "https://cdn.test/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "task-2", task.TaskID)
	assert.Equal(t, 3, calls)
}

func TestRetryCeiling(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		calls++
		return nil, connReset()
	})

	_, err := client.GetTask(context.Background(), "task-1")
	require.Error(t, err)
	assert.Equal(t, 4, calls, "one try plus three retries")
	assert.True(t, errors.Is(err, syscall.ECONNRESET), "last error is surfaced: %v", err)
	assert.Equal(t, providers.KindTransient, providers.KindOf(err))
}

func TestHTTPErrorsAreNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusServiceUnavailable} {
		calls := 0
		client := newTestClient(t, func(*http.Request) (*http.Response, error) {
			calls++
			return jsonResponse(status, `{"code":"Throttling","message":"busy"}`), nil
		})
		_, err := client.CreateTask(context.Background(), TaskRequest{ImageURL: "https://cdn.test/a.jpg"})
		require.Error(t, err)
		assert.Equal(t, 1, calls, "status %d", status)
		var perr *providers.Error
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, status, perr.StatusCode)
	}
}

func TestGetTask(t *testing.T) {
	tests := []struct {
		name string
		body string
		want TaskStatus
	}{
		{
			name: "succeeded",
			body: `{"output":{"task_status":"SUCCEEDED","video_url":"https://oss.test/v.mp4","actual_prompt":"a girl waves gently"}}`,
			want: TaskStatus{TaskID: "task-1", Status: StateSucceeded, VideoURL: "https://oss.test/v.mp4", ActualPrompt: "a girl waves gently"},
		},
		{
			name: "failed",
			body: `{"output":{"task_status":"FAILED","code":"DataInspectionFailed","message":"input image flagged"}}`,
			want: TaskStatus{TaskID: "task-1", Status: StateFailed, Error: "input image flagged"},
		},
		{
			name: "unknown state",
			body: `{"output":{"task_status":"QUEUED"}}`,
			want: TaskStatus{TaskID: "task-1", Status: StateUnknown},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
				assert.Equal(t, "/api/v1/tasks/task-1", r.URL.Path)
				return jsonResponse(http.StatusOK, tc.body), nil
			})
			got, err := client.GetTask(context.Background(), "task-1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestCanceledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		calls++
		cancel()
		return nil, connReset()
	})
	_, err := client.GetTask(ctx, "task-1")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestMissingKey(t *testing.T) {
	client, err := NewClient(Options{Region: "singapore"})
	require.NoError(t, err)
	_, err = client.CreateTask(context.Background(), TaskRequest{ImageURL: "x"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, providers.DashScopeSingapore, client.baseURL)
}
