package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// flakyClient fails the first failures calls, then succeeds.
type flakyClient struct {
	failures int
	calls    int
	err      error
}

func (f *flakyClient) Name() string { return "flaky" }
func (f *flakyClient) Close() error { return nil }

func (f *flakyClient) Generate(ctx context.Context, req Request) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &Response{Text: "ok"}, nil
}

func TestRetry_EventualSuccess(t *testing.T) {
	base := &flakyClient{failures: 2, err: errors.New("transient")}
	c := Retry(3, time.Millisecond)(base)

	resp, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Text)
	require.Equal(t, 3, base.calls)
}

func TestRetry_BudgetExhausted(t *testing.T) {
	wantErr := errors.New("still down")
	base := &flakyClient{failures: 10, err: wantErr}
	c := Retry(3, time.Millisecond)(base)

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 3, base.calls)
}

func TestRetry_PermanentErrorShortCircuits(t *testing.T) {
	base := &flakyClient{failures: 10, err: NewPermanentError(errors.New("bad request"))}
	c := Retry(5, time.Millisecond)(base)

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	var pErr *PermanentError
	require.ErrorAs(t, err, &pErr)
	require.Equal(t, 1, base.calls)
}

func TestRetry_StopsOnCanceledContext(t *testing.T) {
	base := &flakyClient{failures: 10, err: errors.New("transient")}
	c := Retry(5, time.Millisecond)(base)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Generate(ctx, Request{Prompt: "p"})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, base.calls)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(tag string) Middleware {
		return func(next Client) Client {
			return clientFunc(func(ctx context.Context, req Request) (*Response, error) {
				order = append(order, tag)
				return next.Generate(ctx, req)
			})
		}
	}
	base := &flakyClient{}
	c := Chain(base, mw("outer"), mw("inner"))
	_, err := c.Generate(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, []string{"outer", "inner"}, order)
}

type clientFunc func(ctx context.Context, req Request) (*Response, error)

func (f clientFunc) Name() string { return "func" }
func (f clientFunc) Close() error { return nil }
func (f clientFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
