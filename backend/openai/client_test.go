package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/justin-russell/matrix-gptbot/backend"
	"github.com/justin-russell/matrix-gptbot/llm"
)

func TestChatSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer test-key", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-3.5-turbo" {
			t.Errorf("model = %q", req.Model)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hi there"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     12,
				"completion_tokens": 3,
				"total_tokens":      15,
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	res, err := c.Chat(context.Background(), llm.Request{
		Model:    "gpt-3.5-turbo",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Text != "hi there" {
		t.Fatalf("Text = %q, want %q", res.Text, "hi there")
	}
	if res.Usage.TotalTokens != 15 {
		t.Fatalf("TotalTokens = %d, want 15", res.Usage.TotalTokens)
	}
}

func TestChatMapsStatusToErrorKind(t *testing.T) {
	cases := []struct {
		status int
		want   backend.ErrorKind
	}{
		{status: http.StatusUnauthorized, want: backend.KindAuthFailure},
		{status: http.StatusTooManyRequests, want: backend.KindRateLimited},
		{status: http.StatusBadRequest, want: backend.KindInvalidRequest},
		{status: http.StatusInternalServerError, want: backend.KindUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "nope"},
			})
		}))
		c := New(srv.URL, "test-key")
		_, err := c.Chat(context.Background(), llm.Request{Model: "gpt-3.5-turbo"})
		srv.Close()
		if err == nil {
			t.Fatalf("Chat() with status %d: want error", tc.status)
		}
		if got := backend.KindOf(err); got != tc.want {
			t.Fatalf("Chat() with status %d: kind = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestChatUnconfigured(t *testing.T) {
	c := New("", "")
	_, err := c.Chat(context.Background(), llm.Request{Model: "gpt-3.5-turbo"})
	if !backend.IsUnsupported(err) {
		t.Fatalf("Chat() error = %v, want unsupported", err)
	}
}

func TestGenerateImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"b64_json": base64.StdEncoding.EncodeToString(png)},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	img, err := c.GenerateImage(context.Background(), "a teapot")
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if string(img.Data) != string(png) {
		t.Fatalf("image data mismatch: got %v", img.Data)
	}
}
