package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/tunefeed/internal/shared"
)

func TestAnthropicService(t *testing.T) {
	ctx := context.Background()

	t.Run("requires api key", func(t *testing.T) {
		if _, err := NewAnthropicService(shared.AnthropicConfig{}, ClientOptions{}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		svc, err := NewAnthropicService(shared.AnthropicConfig{APIKey: "k"}, ClientOptions{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if svc.baseURL != anthropicBaseURL || svc.model != anthropicModel || svc.maxTokens != 1024 {
			t.Errorf("unexpected defaults %+v", svc)
		}
	})

	t.Run("Generate", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("x-api-key") != "k" || r.Header.Get("anthropic-version") != anthropicVersion {
				t.Errorf("missing auth headers: %v", r.Header)
			}

			var body anthropicRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if body.Model != "test-model" || body.MaxTokens != 256 || len(body.Messages) != 1 || body.Messages[0].Content != "hello" {
				t.Errorf("unexpected request body %+v", body)
			}

			fmt.Fprint(w, `{"id":"msg_1","content":[{"type":"text","text":"world"}],"stop_reason":"end_turn"}`)
		}))
		defer server.Close()

		svc, _ := NewAnthropicService(shared.AnthropicConfig{
			APIKey: "k", BaseURL: server.URL + "/v1/", Model: "test-model", MaxTokens: 256,
		}, ClientOptions{Logger: shared.NewLogger(io.Discard)})

		text, err := svc.Generate(ctx, "hello")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if text != "world" {
			t.Errorf("expected world, got %s", text)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id":"msg_1","content":[]}`)
		}))
		defer server.Close()

		svc, _ := NewAnthropicService(shared.AnthropicConfig{APIKey: "k", BaseURL: server.URL}, ClientOptions{Logger: shared.NewLogger(io.Discard)})
		if _, err := svc.Generate(ctx, "hello"); !errors.Is(err, shared.ErrParseResponse) {
			t.Errorf("expected ErrParseResponse, got %v", err)
		}
	})

	t.Run("overloaded upstream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(529)
			fmt.Fprint(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
		}))
		defer server.Close()

		svc, _ := NewAnthropicService(shared.AnthropicConfig{APIKey: "k", BaseURL: server.URL}, ClientOptions{Logger: shared.NewLogger(io.Discard)})
		if _, err := svc.Generate(ctx, "hello"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
