// Package openai is a thin client for the OpenAI Responses API with stored
// prompts. Gates reference prompts by ID; the prompt text itself lives on
// the provider side.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type promptPayload struct {
	ID        string            `json:"id"`
	Version   string            `json:"version,omitempty"`
	Variables map[string]string `json:"variables"`
}

type request struct {
	Prompt promptPayload `json:"prompt"`
	Input  []Message     `json:"input"`
	Stream bool          `json:"stream"`
	Store  bool          `json:"store"`
}

type response struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is any failure reported by the completion provider. Callers
// treat all provider failures as a single error kind.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai api error %d: %s — %s", e.StatusCode, e.Type, e.Message)
}

// Complete runs a stored prompt against the message history and returns the
// full output text.
func (c *Client) Complete(ctx context.Context, promptID, version string, variables map[string]string, messages []Message) (string, error) {
	resp, err := c.send(ctx, promptID, version, variables, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	var sb strings.Builder
	for _, item := range apiResp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				sb.WriteString(part.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response output")
	}
	return sb.String(), nil
}

// CompleteStream runs the same call with streaming enabled. Text deltas are
// passed to onDelta in arrival order; the accumulated full text is returned
// once the stream ends.
func (c *Client) CompleteStream(ctx context.Context, promptID, version string, variables map[string]string, messages []Message, onDelta func(delta string)) (string, error) {
	resp, err := c.send(ctx, promptID, version, variables, messages, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var evt struct {
			Type  string `json:"type"`
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			continue
		}
		if evt.Type == "response.output_text.delta" && evt.Delta != "" {
			sb.WriteString(evt.Delta)
			if onDelta != nil {
				onDelta(evt.Delta)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return sb.String(), nil
}

func (c *Client) send(ctx context.Context, promptID, version string, variables map[string]string, messages []Message, stream bool) (*http.Response, error) {
	if variables == nil {
		variables = map[string]string{}
	}
	reqBody := request{
		Prompt: promptPayload{ID: promptID, Version: version, Variables: variables},
		Input:  messages,
		Stream: stream,
		Store:  !stream,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			apiErr.Type = errResp.Error.Type
			apiErr.Message = errResp.Error.Message
		} else {
			apiErr.Message = string(respBody)
		}
		return nil, apiErr
	}

	return resp, nil
}
