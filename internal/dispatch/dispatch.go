// Package dispatch fans sub-agent invocations out over a bounded worker
// pool and collects independent successes and failures. Partial success is
// the normal case, not an error.
package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"agentrules/internal/agentspec"
	"agentrules/internal/llm"
)

// Invocation is one prepared sub-agent call.
type Invocation struct {
	Definition agentspec.Definition
	Request    llm.Request
}

// Outcome records how one invocation resolved. Failed outcomes carry the
// terminal error after the client's retry budget was exhausted.
type Outcome struct {
	Definition agentspec.Definition
	Text       string
	ToolCalls  []llm.ToolCall
	Usage      llm.Usage
	Elapsed    time.Duration
	Err        error
}

// OK reports whether the invocation produced a result.
func (o Outcome) OK() bool { return o.Err == nil }

// Dispatcher runs invocations with bounded concurrency against one client.
type Dispatcher struct {
	Client  llm.Client
	Workers int
	Log     *logrus.Logger
}

// Dispatch submits every invocation to the pool and blocks until all have
// resolved. A failed invocation never cancels its siblings; a canceled ctx
// stops new submissions while already-dispatched calls finish or time out.
// Results come back in the original invocation order regardless of
// completion order.
func (d *Dispatcher) Dispatch(ctx context.Context, invocations []Invocation) []Outcome {
	workers := d.Workers
	if workers <= 0 {
		workers = 4
	}
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	type indexed struct {
		i int
		o Outcome
	}
	var (
		mu      sync.Mutex
		results []indexed
		wg      sync.WaitGroup
		sema    = make(chan struct{}, workers)
	)

	for i, inv := range invocations {
		if ctx.Err() != nil {
			mu.Lock()
			results = append(results, indexed{i, Outcome{Definition: inv.Definition, Err: ctx.Err()}})
			mu.Unlock()
			continue
		}
		sema <- struct{}{}
		wg.Add(1)
		go func(i int, inv Invocation) {
			defer wg.Done()
			defer func() { <-sema }()
			out := d.runOne(ctx, inv, log)
			mu.Lock()
			results = append(results, indexed{i, out})
			mu.Unlock()
		}(i, inv)
	}
	wg.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].i < results[b].i })
	outcomes := make([]Outcome, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, r.o)
	}
	return outcomes
}

func (d *Dispatcher) runOne(ctx context.Context, inv Invocation, log *logrus.Logger) Outcome {
	callCtx := llm.WithAgent(ctx, inv.Definition.ID)
	started := time.Now()
	resp, err := d.Client.Generate(callCtx, inv.Request)
	elapsed := time.Since(started)

	out := Outcome{Definition: inv.Definition, Elapsed: elapsed, Err: err}
	if err != nil {
		log.WithFields(logrus.Fields{
			"agent":   inv.Definition.ID,
			"elapsed": elapsed.Round(time.Millisecond).String(),
		}).WithError(err).Warn("sub-agent invocation failed")
		return out
	}
	out.Text = resp.Text
	out.ToolCalls = resp.ToolCalls
	out.Usage = resp.Usage
	log.WithFields(logrus.Fields{
		"agent":   inv.Definition.ID,
		"files":   len(inv.Definition.Files),
		"elapsed": elapsed.Round(time.Millisecond).String(),
	}).Info("sub-agent invocation completed")
	return out
}

// Split partitions outcomes into successes and failures, preserving order.
func Split(outcomes []Outcome) (ok, failed []Outcome) {
	for _, o := range outcomes {
		if o.OK() {
			ok = append(ok, o)
		} else {
			failed = append(failed, o)
		}
	}
	return ok, failed
}
