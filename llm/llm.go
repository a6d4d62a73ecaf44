package llm

import (
	"context"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Request struct {
	Model    string
	Messages []Message
}

// Client is the chat-completion contract. Implementations are pure
// request/response and never retry internally.
type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
