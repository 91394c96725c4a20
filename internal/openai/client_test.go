package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("expected /responses, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", r.Header.Get("Authorization"))
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Prompt.ID != "pmpt_test" {
			t.Errorf("expected prompt id pmpt_test, got %q", req.Prompt.ID)
		}
		if req.Prompt.Version != "5" {
			t.Errorf("expected prompt version 5, got %q", req.Prompt.Version)
		}
		if req.Prompt.Variables["product_options"] != "A) Red" {
			t.Errorf("unexpected variables: %v", req.Prompt.Variables)
		}
		if len(req.Input) != 1 || req.Input[0].Content != "hello" {
			t.Errorf("unexpected input: %+v", req.Input)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"output":[{"type":"message","content":[{"type":"output_text","text":"world"}]}]}`)
	}))
	defer server.Close()

	c := NewClient("test-key")
	c.SetBaseURL(server.URL)

	result, err := c.Complete(context.Background(), "pmpt_test", "5",
		map[string]string{"product_options": "A) Red"},
		[]Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "world" {
		t.Errorf("expected 'world', got %q", result)
	}
}

func TestComplete_OmitsEmptyVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		prompt := raw["prompt"].(map[string]any)
		if _, ok := prompt["version"]; ok {
			t.Error("version should be omitted when empty")
		}
		fmt.Fprint(w, `{"output":[{"type":"message","content":[{"type":"output_text","text":"ok"}]}]}`)
	}))
	defer server.Close()

	c := NewClient("test-key")
	c.SetBaseURL(server.URL)

	if _, err := c.Complete(context.Background(), "pmpt_test", "", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestComplete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"unknown prompt"}}`)
	}))
	defer server.Close()

	c := NewClient("test-key")
	c.SetBaseURL(server.URL)

	_, err := c.Complete(context.Background(), "pmpt_bad", "", nil, nil)
	if err == nil {
		t.Fatal("expected error for API error response")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "unknown prompt" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestComplete_EmptyOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"output":[]}`)
	}))
	defer server.Close()

	c := NewClient("test-key")
	c.SetBaseURL(server.URL)

	if _, err := c.Complete(context.Background(), "pmpt_test", "", nil, nil); err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestCompleteStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("expected streaming request")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: response.output_text.delta\n")
		fmt.Fprint(w, `data: {"type":"response.output_text.delta","delta":"Hel"}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"response.output_text.delta","delta":"lo"}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"response.completed"}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := NewClient("test-key")
	c.SetBaseURL(server.URL)

	var deltas []string
	full, err := c.CompleteStream(context.Background(), "pmpt_test", "", nil,
		[]Message{{Role: "user", Content: "hi"}},
		func(delta string) { deltas = append(deltas, delta) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full != "Hello" {
		t.Errorf("expected accumulated 'Hello', got %q", full)
	}
	if strings.Join(deltas, "|") != "Hel|lo" {
		t.Errorf("deltas out of order: %v", deltas)
	}
}

func TestCompleteStream_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"type":"auth_error","message":"bad key"}}`)
	}))
	defer server.Close()

	c := NewClient("bad-key")
	c.SetBaseURL(server.URL)

	_, err := c.CompleteStream(context.Background(), "pmpt_test", "", nil, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}
