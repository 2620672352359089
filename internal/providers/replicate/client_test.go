package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

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
		APIToken:   "r8_test",
		BaseURL:    "https://replicate.test/v1/",
		HTTPClient: &http.Client{Transport: fn},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSubmitPayload(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/predictions" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token r8_test" {
			t.Fatalf("Authorization = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(http.StatusCreated, `{"id":"pred-123","status":"starting"}`), nil
	})

	id, err := client.Submit(context.Background(), []byte{0xff, 0xd8}, "image/png", "An Elegant Princess at the Ballroom")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if id != "pred-123" {
		t.Fatalf("id = %q", id)
	}
	if captured["version"] != "black-forest-labs/flux-kontext-pro" {
		t.Fatalf("version = %v", captured["version"])
	}
	input := captured["input"].(map[string]any)
	if input["prompt"] != "an beautiful character at the dance hall" {
		t.Fatalf("prompt = %v", input["prompt"])
	}
	if input["input_image"] != "data:image/png;base64,/9g=" {
		t.Fatalf("input_image = %v", input["input_image"])
	}
	if input["aspect_ratio"] != "match_input_image" || input["output_format"] != "jpg" {
		t.Fatalf("unexpected input %#v", input)
	}
	if input["safety_tolerance"] != float64(2) || input["prompt_upsampling"] != false {
		t.Fatalf("unexpected input %#v", input)
	}
}

func TestSubmitClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   providers.Kind
	}{
		{"auth", http.StatusUnauthorized, `{"detail":"Invalid token."}`, providers.KindAuth},
		{"quota", http.StatusPaymentRequired, `{"title":"Insufficient credit"}`, providers.KindQuota},
		{"rate limited", http.StatusTooManyRequests, `{"detail":"slow down"}`, providers.KindTransient},
		{"server", http.StatusServiceUnavailable, ``, providers.KindTransient},
		{"validation", http.StatusUnprocessableEntity, `{"detail":"input_image invalid"}`, providers.KindInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			})
			_, err := client.Submit(context.Background(), []byte{1}, "", "prompt")
			if got := providers.KindOf(err); got != tc.want {
				t.Fatalf("kind = %q, want %q (err=%v)", got, tc.want, err)
			}
		})
	}
}

func TestSubmitRequiresInput(t *testing.T) {
	client, _ := NewClient(Options{})
	if _, err := client.Submit(context.Background(), []byte{1}, "", "p"); !errors.Is(err, ErrMissingAPIToken) {
		t.Fatalf("expected ErrMissingAPIToken, got %v", err)
	}
	client = newTestClient(t, func(r *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	if _, err := client.Submit(context.Background(), nil, "", "p"); providers.KindOf(err) != providers.KindInvalid {
		t.Fatalf("expected invalid error, got %v", err)
	}
	if _, err := client.Submit(context.Background(), []byte{1}, "", " "); providers.KindOf(err) != providers.KindInvalid {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestPoll(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status Status
		output string
		errMsg string
	}{
		{"succeeded string output", `{"id":"p","status":"succeeded","output":"https://replicate.delivery/out.jpg"}`, StatusSucceeded, "https://replicate.delivery/out.jpg", ""},
		{"succeeded list output", `{"id":"p","status":"succeeded","output":["","https://replicate.delivery/a.jpg"]}`, StatusSucceeded, "https://replicate.delivery/a.jpg", ""},
		{"processing", `{"id":"p","status":"processing","output":null}`, StatusProcessing, "", ""},
		{"failed", `{"id":"p","status":"failed","error":"NSFW content detected"}`, StatusFailed, "", "NSFW content detected"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
				if r.Method != http.MethodGet || r.URL.Path != "/v1/predictions/p" {
					t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				return jsonResponse(http.StatusOK, tc.body), nil
			})
			pred, err := client.Poll(context.Background(), "p")
			if err != nil {
				t.Fatalf("Poll error: %v", err)
			}
			if pred.Status != tc.status || pred.OutputURL != tc.output || pred.Error != tc.errMsg {
				t.Fatalf("unexpected prediction %+v", pred)
			}
		})
	}
}

func TestCancel(t *testing.T) {
	called := false
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		called = true
		if r.Method != http.MethodPost || r.URL.Path != "/v1/predictions/pred-1/cancel" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"id":"pred-1","status":"canceled"}`), nil
	})
	if err := client.Cancel(context.Background(), "pred-1"); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if !called {
		t.Fatal("cancel endpoint not called")
	}
}

func TestCleanPrompt(t *testing.T) {
	got := CleanPrompt("  Sexy ROMANCE with a Glass Slipper, intimate and sensual  ")
	want := "attractive story with a magic shoe, personal and graceful"
	if got != want {
		t.Fatalf("CleanPrompt() = %q, want %q", got, want)
	}
}
