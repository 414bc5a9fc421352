package llm

import (
	"context"
	"sync"
)

// FakeClient returns deterministic canned replies per stage for offline
// runs and tests. Replies are keyed by the stage tag in the context; an
// unknown stage gets a generic acknowledgement.
type FakeClient struct {
	mu      sync.Mutex
	replies map[string]string
	calls   []Request
}

func NewFakeClient(replies map[string]string) *FakeClient {
	if replies == nil {
		replies = map[string]string{}
	}
	return &FakeClient{replies: replies}
}

func (f *FakeClient) Name() string { return "fake" }
func (f *FakeClient) Close() error { return nil }

// Calls returns every request seen so far, in arrival order.
func (f *FakeClient) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, req)
	reply, ok := f.replies[StageFrom(ctx)]
	f.mu.Unlock()
	if !ok {
		reply = "fake analysis output"
	}
	return &Response{
		Text:  reply,
		Usage: Usage{InputTokens: len(req.Prompt) / 4, OutputTokens: len(reply) / 4},
	}, nil
}
