package llm

import (
	"context"
	"net/url"
	"strings"

	ollama "github.com/JexSrs/go-ollama"

	"agentrules/internal/config"
)

// OllamaClient runs prompts against a local Ollama server. Tool schemas are
// dropped for this variant; AdaptTools documents that.
type OllamaClient struct {
	cli   *ollama.Ollama
	model string
}

func NewOllamaClient(host, model string) (*OllamaClient, error) {
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, config.Errorf("invalid ollama host %q: %v", host, err)
	}
	return &OllamaClient{cli: ollama.New(*u), model: model}, nil
}

func (c *OllamaClient) Name() string { return "ollama:" + c.model }
func (c *OllamaClient) Close() error { return nil }

func (c *OllamaClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := c.cli.Generate(
		c.cli.Generate.WithModel(c.model),
		c.cli.Generate.WithSystem(req.System),
		c.cli.Generate.WithPrompt(req.Prompt),
	)
	if err != nil {
		return nil, err
	}
	if !res.Done || res.Response == "" {
		return nil, ErrEmptyResponse
	}
	// Models occasionally fence their whole reply in backticks.
	text := strings.TrimSpace(strings.Trim(res.Response, "`"))
	return &Response{Text: text}, nil
}
