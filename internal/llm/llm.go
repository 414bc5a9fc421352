package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any usable
// text or tool calls.
var ErrEmptyResponse = errors.New("llm: empty response from model")

// Tool is the canonical tool definition. The shape follows the OpenAI
// function-calling schema; adapters translate it per provider.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON schema object ({"type":"object",...}).
	Parameters map[string]any
}

// ToolCall is a normalized tool invocation requested by a model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON arguments
}

// Usage carries per-call token counters when the provider reports them.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add accumulates another usage record.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Request is the provider-agnostic prompt bundle.
type Request struct {
	System string
	Prompt string
	Tools  []Tool
}

// Response is the normalized result every provider variant must produce.
// Callers never see provider-specific response shapes.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// Client is the single polymorphic model-invocation contract.
type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
	Close() error
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// Middleware decorates a Client with a cross-cutting concern.
type Middleware func(Client) Client

// Chain applies middlewares so the first listed is the outermost.
func Chain(c Client, mws ...Middleware) Client {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}
