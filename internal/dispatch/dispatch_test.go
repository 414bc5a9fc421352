package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"agentrules/internal/agentspec"
	"agentrules/internal/llm"
)

// stubClient fails for agent IDs listed in failFor and tracks the maximum
// number of concurrently in-flight calls.
type stubClient struct {
	failFor map[string]bool
	delay   time.Duration

	inflight int64
	maxSeen  int64
	mu       sync.Mutex
}

func (s *stubClient) Name() string { return "stub" }
func (s *stubClient) Close() error { return nil }

func (s *stubClient) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	cur := atomic.AddInt64(&s.inflight, 1)
	defer atomic.AddInt64(&s.inflight, -1)
	s.mu.Lock()
	if cur > s.maxSeen {
		s.maxSeen = cur
	}
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	agent := llm.AgentFrom(ctx)
	if s.failFor[agent] {
		return nil, errors.New("provider timeout after retries")
	}
	return &llm.Response{
		Text:  "findings for " + agent,
		Usage: llm.Usage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func invocationsN(n int) []Invocation {
	out := make([]Invocation, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Invocation{
			Definition: agentspec.Definition{ID: fmt.Sprintf("agent_%d", i), Name: fmt.Sprintf("Agent %d", i)},
			Request:    llm.Request{Prompt: "analyze"},
		})
	}
	return out
}

func TestDispatch_PartialFailure(t *testing.T) {
	stub := &stubClient{failFor: map[string]bool{"agent_2": true}}
	d := &Dispatcher{Client: stub, Workers: 2, Log: quietLog()}

	outcomes := d.Dispatch(context.Background(), invocationsN(3))
	require.Len(t, outcomes, 3)

	ok, failed := Split(outcomes)
	require.Len(t, ok, 2)
	require.Len(t, failed, 1)
	require.Equal(t, "agent_2", failed[0].Definition.ID)
	require.Error(t, failed[0].Err)

	// Results stay in original definition order.
	for i, o := range outcomes {
		require.Equal(t, fmt.Sprintf("agent_%d", i+1), o.Definition.ID)
	}
}

func TestDispatch_ConcurrencyBound(t *testing.T) {
	stub := &stubClient{delay: 20 * time.Millisecond}
	d := &Dispatcher{Client: stub, Workers: 3, Log: quietLog()}

	outcomes := d.Dispatch(context.Background(), invocationsN(10))
	require.Len(t, outcomes, 10)
	require.LessOrEqual(t, stub.maxSeen, int64(3), "in-flight invocations exceeded the worker bound")
}

func TestDispatch_UsagePropagated(t *testing.T) {
	stub := &stubClient{}
	d := &Dispatcher{Client: stub, Workers: 2, Log: quietLog()}

	outcomes := d.Dispatch(context.Background(), invocationsN(2))
	for _, o := range outcomes {
		require.True(t, o.OK())
		require.Equal(t, 10, o.Usage.InputTokens)
		require.Equal(t, 5, o.Usage.OutputTokens)
	}
}

func TestDispatch_CanceledContext(t *testing.T) {
	stub := &stubClient{}
	d := &Dispatcher{Client: stub, Workers: 2, Log: quietLog()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes := d.Dispatch(ctx, invocationsN(4))
	require.Len(t, outcomes, 4)
	for _, o := range outcomes {
		require.ErrorIs(t, o.Err, context.Canceled)
	}
}
