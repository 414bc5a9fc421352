package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agentrules/internal/config"
)

// OpenAI-compatible chat-completions endpoints. DeepSeek and xAI expose the
// same wire format, so one client serves all three behind different base URLs.
const (
	openAIBaseURL   = "https://api.openai.com/v1/chat/completions"
	deepSeekBaseURL = "https://api.deepseek.com/chat/completions"
	xaiBaseURL      = "https://api.x.ai/v1/chat/completions"
)

// OpenAIClient calls an OpenAI-compatible Chat Completions API.
type OpenAIClient struct {
	http        *http.Client
	apiKey      string
	model       string
	baseURL     string
	provider    config.Provider
	temperature float32
}

// NewOpenAIClient builds a client for the given OpenAI-compatible provider.
func NewOpenAIClient(provider config.Provider, apiKey, model string, temperature float32) (*OpenAIClient, error) {
	var base string
	switch provider {
	case config.ProviderOpenAI:
		base = openAIBaseURL
	case config.ProviderDeepSeek:
		base = deepSeekBaseURL
	case config.ProviderXAI:
		base = xaiBaseURL
	default:
		return nil, config.Errorf("provider %q is not OpenAI-compatible", provider)
	}
	return &OpenAIClient{
		http:        &http.Client{Timeout: 120 * time.Second},
		apiKey:      apiKey,
		model:       model,
		baseURL:     base,
		provider:    provider,
		temperature: temperature,
	}, nil
}

func (c *OpenAIClient) Name() string { return string(c.provider) + ":" + c.model }
func (c *OpenAIClient) Close() error { return nil }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	Tools       any           `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Response, error) {
	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{Model: c.model, Messages: msgs, Temperature: c.temperature}
	if len(req.Tools) > 0 {
		adapted, err := AdaptTools(req.Tools, c.provider)
		if err != nil {
			return nil, NewPermanentError(err)
		}
		body.Tools = adapted
	}

	b, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%s: unexpected status %s: %s", c.provider, resp.Status, snippet)
		// 4xx (except 429) will not resolve with retries.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, NewPermanentError(err)
		}
		return nil, err
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	msg := out.Choices[0].Message
	res := &Response{
		Text: msg.Content,
		Usage: Usage{
			InputTokens:  out.Usage.PromptTokens,
			OutputTokens: out.Usage.CompletionTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		res.ToolCalls = append(res.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if res.Text == "" && len(res.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}
	return res, nil
}
