package qwen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"golang.org/x/text/language"

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
		Region:     "singapore",
		HTTPClient: &http.Client{Transport: fn},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSynthesizeRequestShape(t *testing.T) {
	var captured generationRequest
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Host != "dashscope-intl.aliyuncs.com" {
			t.Fatalf("host = %q", r.URL.Host)
		}
		if r.URL.Path != "/api/v1/services/aigc/multimodal-generation/generation" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("Authorization = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"output":{"choices":[{"message":{"content":[{"text":"  a cheerful girl waves in a sunny garden  "}]}}]},"request_id":"req-1"}`), nil
	})

	got, err := client.Synthesize(context.Background(), "https://cdn.test/styled.jpg", language.French)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if got != "a cheerful girl waves in a sunny garden" {
		t.Fatalf("prompt = %q", got)
	}
	if captured.Model != "qwen-vl-max" {
		t.Fatalf("model = %q", captured.Model)
	}
	msgs := captured.Input.Messages
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("unexpected messages %#v", msgs)
	}
	if !strings.Contains(msgs[0].Content[0].Text, "français") {
		t.Fatalf("instruction should name the target language: %q", msgs[0].Content[0].Text)
	}
	if msgs[1].Content[0].Type != "image" || msgs[1].Content[0].Image != "https://cdn.test/styled.jpg" {
		t.Fatalf("unexpected user content %#v", msgs[1].Content)
	}
}

func TestSynthesizeContentShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		err  error
	}{
		{name: "plain string", body: `{"output":{"choices":[{"message":{"content":"a boy runs"}}]}}`, want: "a boy runs"},
		{name: "skips empty parts", body: `{"output":{"choices":[{"message":{"content":[{"image":"x"},{"text":""},{"text":"a cat jumps"}]}}]}}`, want: "a cat jumps"},
		{name: "no choices", body: `{"output":{"choices":[]}}`, err: ErrNoText},
		{name: "blank text", body: `{"output":{"choices":[{"message":{"content":"   "}}]}}`, err: ErrNoText},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, tc.body), nil
			})
			got, err := client.Synthesize(context.Background(), "https://cdn.test/a.jpg", language.English)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("err = %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("Synthesize = (%q, %v), want %q", got, err, tc.want)
			}
		})
	}
}

func TestSynthesizeErrors(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"code":"InvalidApiKey","message":"Invalid API-key provided."}`), nil
	})
	_, err := client.Synthesize(context.Background(), "https://cdn.test/a.jpg", language.English)
	var perr *providers.Error
	if !errors.As(err, &perr) || perr.Kind != providers.KindAuth || perr.Code != "InvalidApiKey" {
		t.Fatalf("unexpected error %#v", err)
	}

	unset, _ := NewClient(Options{})
	if _, err := unset.Synthesize(context.Background(), "https://cdn.test/a.jpg", language.English); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestLanguageName(t *testing.T) {
	tests := map[language.Tag]string{
		language.Und:                  "English",
		language.English:              "English",
		language.Japanese:             "日本語",
		language.MustParse("zh-Hans"): "中文",
		language.MustParse("es-419"):  "español",
	}
	for tag, want := range tests {
		if got := LanguageName(tag); got != want {
			t.Errorf("LanguageName(%s) = %q, want %q", tag, got, want)
		}
	}
}
