package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowline-dev/flowline/internal/core"
)

func TestOpenAIProvider_Generate(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "gpt-4o",
			"choices": [{"message": {"role": "assistant", "content": "hello"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2}
		}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(ProviderConfig{APIKey: "test-key", BaseURL: server.URL})
	result, err := p.Generate(context.Background(), core.GenerateRequest{
		SystemPrompt: "be brief",
		Prompt:       "say hello",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Text != "hello" {
		t.Errorf("Text = %q, want hello", result.Text)
	}
	if result.TokensIn != 5 || result.TokensOut != 2 {
		t.Errorf("tokens = %d/%d, want 5/2", result.TokensIn, result.TokensOut)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestPostJSON_StatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		retryAfter    string
		wantCode      string
		wantRetryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, "30", core.CodeRateLimited, true},
		{"bad request", http.StatusBadRequest, "", core.CodeInvalidRequest, false},
		{"unauthorized", http.StatusUnauthorized, "", core.CodeInvalidRequest, false},
		{"server error", http.StatusInternalServerError, "", core.CodeProviderUnavailable, true},
		{"bad gateway", http.StatusBadGateway, "", core.CodeProviderUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error": "nope"}`))
			}))
			defer server.Close()

			p := NewOpenAIProvider(ProviderConfig{BaseURL: server.URL})
			_, err := p.Generate(context.Background(), core.GenerateRequest{Prompt: "x"})
			if err == nil {
				t.Fatal("Generate() expected error")
			}
			if !core.IsCode(err, tt.wantCode) {
				t.Errorf("error code = %v, want %s", err, tt.wantCode)
			}
			if core.IsRetryable(err) != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", core.IsRetryable(err), tt.wantRetryable)
			}
		})
	}
}

func TestPostJSON_RetryAfterHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewOpenAIProvider(ProviderConfig{BaseURL: server.URL})
	_, err := p.Generate(context.Background(), core.GenerateRequest{Prompt: "x"})

	var domainErr *core.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("error type = %T, want *core.DomainError", err)
	}
	if got, ok := domainErr.Details["retry_after_seconds"]; !ok || got != 42 {
		t.Errorf("retry_after_seconds = %v, want 42", got)
	}
}

func TestPostJSON_TransportError(t *testing.T) {
	// Point at a closed server so the dial fails.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	p := NewOpenAIProvider(ProviderConfig{BaseURL: server.URL})
	_, err := p.Generate(context.Background(), core.GenerateRequest{Prompt: "x"})
	if !core.IsCode(err, core.CodeProviderUnavailable) {
		t.Errorf("error = %v, want PROVIDER_UNAVAILABLE", err)
	}
	if !core.IsRetryable(err) {
		t.Error("transport errors should be retryable")
	}
}

func TestPing(t *testing.T) {
	t.Run("reachable endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"model": "gpt-4o", "choices": [{"message": {"content": "ok"}}]}`))
		}))
		defer server.Close()

		p := NewOpenAIProvider(ProviderConfig{BaseURL: server.URL})
		if err := p.Ping(context.Background()); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})

	t.Run("rejected credentials still count as reachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "invalid api key"}`))
		}))
		defer server.Close()

		p := NewOpenAIProvider(ProviderConfig{BaseURL: server.URL})
		if err := p.Ping(context.Background()); err != nil {
			t.Errorf("Ping() error = %v, auth failure means the endpoint answered", err)
		}
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		p := NewOpenAIProvider(ProviderConfig{BaseURL: server.URL})
		if err := p.Ping(context.Background()); err == nil {
			t.Error("Ping() expected error for closed endpoint")
		}
	})
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model": "gpt-4o", "choices": []}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(ProviderConfig{BaseURL: server.URL})
	_, err := p.Generate(context.Background(), core.GenerateRequest{Prompt: "x"})
	if !core.IsCode(err, core.CodeProviderUnavailable) {
		t.Errorf("error = %v, want PROVIDER_UNAVAILABLE for empty choices", err)
	}
}
