package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gigconnect/gigconnect/internal/config"
)

func TestGenerate_TextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing auth header")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model test-model, got %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "What is a fair price?" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "About $450."}}}})
	}))
	defer srv.Close()

	p := NewOpenAI("test-key", WithBaseURL(srv.URL+"/"), WithModel("test-model"))

	got, err := p.Generate(context.Background(), "What is a fair price?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "About $450." {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", WithBaseURL(srv.URL)).Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error for 429 status")
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", WithBaseURL(srv.URL)).Generate(context.Background(), "hi")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGenerate_RespectsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewOpenAI("k", WithBaseURL(srv.URL)).Generate(ctx, "hi")
	if err == nil || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("expected the call to fail at the deadline, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	if _, ok := FromConfig(config.AIConfig{}).(Disabled); !ok {
		t.Fatal("expected disabled responder")
	}
	if _, err := (Disabled{}).Generate(context.Background(), "x"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	p, ok := FromConfig(config.AIConfig{Enabled: true, BaseURL: "http://llm.local/v1", Model: "m"}).(*OpenAIProvider)
	if !ok {
		t.Fatal("expected OpenAI provider")
	}
	if p.baseURL != "http://llm.local/v1" || p.model != "m" {
		t.Fatalf("unexpected provider %+v", p)
	}
}
