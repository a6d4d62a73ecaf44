package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/justin-russell/matrix-gptbot/backend"
	"github.com/justin-russell/matrix-gptbot/llm"
)

const backendName = "openai"

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *Client) Configured() bool { return strings.TrimSpace(c.APIKey) != "" }

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	if !c.Configured() {
		return llm.Result{}, backend.NewError(backend.KindUnsupported, backendName, "no API key configured")
	}

	start := time.Now()

	body := chatCompletionRequest{
		Model:    req.Model,
		Messages: req.Messages,
	}
	raw, status, err := c.post(ctx, "/v1/chat/completions", body)
	if err != nil {
		return llm.Result{}, err
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.Result{}, backend.NewError(backend.KindUnavailable, backendName, "unparseable response: %v", err)
	}

	if status < 200 || status >= 300 {
		msg := string(raw)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return llm.Result{}, backend.NewError(backend.KindFromStatus(status), backendName, "http %d: %s", status, msg)
	}

	if len(out.Choices) == 0 {
		return llm.Result{}, backend.NewError(backend.KindUnavailable, backendName, "empty choices")
	}

	return llm.Result{
		Text: out.Choices[0].Message.Content,
		Usage: llm.Usage{
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
			TotalTokens:  out.Usage.TotalTokens,
		},
		Duration: time.Since(start),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, 0, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, 0, backend.NewError(backend.KindUnavailable, backendName, "request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, backend.NewError(backend.KindUnavailable, backendName, "read response: %v", err)
	}
	return raw, resp.StatusCode, nil
}
