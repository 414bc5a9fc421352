package llm

import (
	genai "google.golang.org/genai"

	"agentrules/internal/config"
)

// AdaptTools converts canonical tool definitions into the wire shape the
// given provider expects. It is pure and total over the supported provider
// set; an unknown provider is a ConfigurationError, raised by the factory
// at startup rather than at call time.
//
// Return types by provider:
//   - openai / deepseek / xai: []map[string]any (OpenAI function schema)
//   - anthropic:               []map[string]any (input_schema form)
//   - gemini:                  []*genai.Tool
//   - ollama:                  nil (the local API has no tool support;
//     definitions are dropped and the caller relies on plain text)
func AdaptTools(tools []Tool, provider config.Provider) (any, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	switch provider {
	case config.ProviderOpenAI, config.ProviderDeepSeek, config.ProviderXAI:
		out := make([]map[string]any, 0, len(tools))
		for _, t := range tools {
			out = append(out, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  schemaOrEmpty(t.Parameters),
				},
			})
		}
		return out, nil

	case config.ProviderAnthropic:
		out := make([]map[string]any, 0, len(tools))
		for _, t := range tools {
			out = append(out, map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": schemaOrEmpty(t.Parameters),
			})
		}
		return out, nil

	case config.ProviderGemini:
		out := make([]*genai.Tool, 0, len(tools))
		for _, t := range tools {
			out = append(out, &genai.Tool{
				FunctionDeclarations: []*genai.FunctionDeclaration{{
					Name:                 t.Name,
					Description:          t.Description,
					ParametersJsonSchema: schemaOrEmpty(t.Parameters),
				}},
			})
		}
		return out, nil

	case config.ProviderOllama:
		return nil, nil
	}
	return nil, config.Errorf("unsupported provider %q for tool schema", provider)
}

// ValidateToolSupport checks adaptability for a provider without any tools
// on hand. Run during factory construction.
func ValidateToolSupport(provider config.Provider) error {
	probe := []Tool{{
		Name:       "probe",
		Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
	}}
	_, err := AdaptTools(probe, provider)
	return err
}

func schemaOrEmpty(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return params
}
