package llm

import (
	"context"
	"errors"
)

// Client abstracts LLM chat-completion providers.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest captures one chat-completion call: a fixed system
// instruction, the user content, and the generation parameters.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not configured")

// PlaceholderClient fails every call. It stands in when no provider
// credentials are configured so the rest of the app can still boot.
type PlaceholderClient struct{}

// Complete returns ErrNotImplemented.
func (PlaceholderClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	_ = ctx
	_ = req
	return "", ErrNotImplemented
}
