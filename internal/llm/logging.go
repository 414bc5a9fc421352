package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// WithLogging logs request size, duration and errors for every call.
// A nil logger uses logrus.StandardLogger().
func WithLogging(logger *logrus.Logger) Middleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(next Client) Client {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Client
	log  *logrus.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Generate(ctx context.Context, req Request) (*Response, error) {
	fields := logrus.Fields{
		"client": l.next.Name(),
		"stage":  StageFrom(ctx),
		"bytes":  len(req.System) + len(req.Prompt),
	}
	if agent := AgentFrom(ctx); agent != "" {
		fields["agent"] = agent
	}
	started := time.Now()
	resp, err := l.next.Generate(ctx, req)
	fields["elapsed"] = time.Since(started).Round(time.Millisecond).String()
	if err != nil {
		l.log.WithFields(fields).WithError(err).Warn("model call failed")
		return nil, err
	}
	fields["in_tokens"] = resp.Usage.InputTokens
	fields["out_tokens"] = resp.Usage.OutputTokens
	l.log.WithFields(fields).Debug("model call completed")
	return resp, nil
}
