package llm

import (
	"context"
	"errors"
)

// ErrProvider wraps every failure raised by a provider SDK. Callers classify
// with errors.Is and never see SDK error types.
var ErrProvider = errors.New("llm provider failure")

// Request is one chat completion with a system and a user message.
type Request struct {
	System          string
	User            string
	MaxOutputTokens int
	Temperature     float64
}

// DeltaHandler receives streamed text in arrival order. Returning an error
// aborts the stream.
type DeltaHandler func(delta string) error

// Client is the chat-completion boundary every pipeline stage talks to.
type Client interface {
	// Complete returns the full response text.
	Complete(ctx context.Context, req Request) (string, error)
	// Stream delivers the response as it is generated and returns once the
	// provider closes the stream.
	Stream(ctx context.Context, req Request, handle DeltaHandler) error
	// Model is the model name requests are sent to.
	Model() string
}

// Factory returns a fresh client per call.
type Factory func() (Client, error)

// Static returns a Factory that always hands out c.
func Static(c Client) Factory {
	return func() (Client, error) { return c, nil }
}
