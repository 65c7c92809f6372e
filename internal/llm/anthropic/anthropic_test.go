package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/efebarandurmaz/archscore/internal/llm"
)

func TestNew_SetsDefaults(t *testing.T) {
	client := New("test-key", "test-model", "")
	if client.baseURL != defaultBaseURL {
		t.Errorf("expected default baseURL %q, got %q", defaultBaseURL, client.baseURL)
	}
	if client.Name() != "anthropic" {
		t.Errorf("expected name 'anthropic', got %q", client.Name())
	}
}

func TestComplete_RequestAndResponse(t *testing.T) {
	var captured request
	var headers http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header
		if r.URL.Path != "/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]string{{"type": "text", "text": "Add a "}, {"type": "text", "text": "cache."}},
			"model":       "test-model",
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 20},
		})
	}))
	defer server.Close()

	maxTokens := 300
	client := New("test-api-key", "test-model", server.URL)
	resp, err := client.Complete(context.Background(), llm.NewPrompt("be brief", "review"), &llm.RequestOptions{MaxTokens: &maxTokens})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if headers.Get("x-api-key") != "test-api-key" || headers.Get("anthropic-version") != apiVersion {
		t.Errorf("headers = %v", headers)
	}
	if captured.System != "be brief" || captured.MaxTokens != 300 || len(captured.Messages) != 1 {
		t.Errorf("request = %+v", captured)
	}
	if resp.Content != "Add a cache." || resp.InputTokens != 10 || resp.OutputTokens != 20 || resp.StopReason != "end_turn" {
		t.Errorf("response = %+v", resp)
	}
}

func TestComplete_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, 529)
	}))
	defer server.Close()

	_, err := New("k", "m", server.URL).Complete(context.Background(), llm.NewPrompt("", "x"), nil)
	var se *llm.StatusError
	if !errors.As(err, &se) || se.Code != 529 || !se.Retryable() {
		t.Fatalf("err = %v", err)
	}
}
