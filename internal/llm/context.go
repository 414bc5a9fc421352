package llm

import (
	"context"
	"strings"
)

type ctxKeyStage struct{}
type ctxKeyAgent struct{}

// WithStage tags a context with the pipeline stage issuing the call.
// Middlewares and the fake client read it for logging and canned replies.
func WithStage(ctx context.Context, stage string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyStage{}, strings.TrimSpace(stage))
}

// StageFrom returns the stage tag, or "" when untagged.
func StageFrom(ctx context.Context) string {
	if ctx != nil {
		if v, ok := ctx.Value(ctxKeyStage{}).(string); ok {
			return v
		}
	}
	return ""
}

// WithAgent tags a context with the sub-agent identifier driving the call.
func WithAgent(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyAgent{}, strings.TrimSpace(id))
}

// AgentFrom returns the sub-agent tag, or "" when untagged.
func AgentFrom(ctx context.Context) string {
	if ctx != nil {
		if v, ok := ctx.Value(ctxKeyAgent{}).(string); ok {
			return v
		}
	}
	return ""
}
