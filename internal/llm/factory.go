package llm

import (
	"context"

	"github.com/sirupsen/logrus"

	"agentrules/internal/config"
)

// New builds a Client for one model preset, wrapped with the run's logging,
// retry and throttling middleware. Missing credentials or an unknown
// provider fail here with a ConfigurationError, before any stage executes.
func New(ctx context.Context, preset config.ModelPreset, cfg config.Run, log *logrus.Logger) (Client, error) {
	if preset.Model == "" {
		return nil, config.Errorf("no model configured for provider %q", preset.Provider)
	}
	if err := ValidateToolSupport(preset.Provider); err != nil {
		return nil, err
	}

	var (
		base Client
		err  error
	)
	switch preset.Provider {
	case config.ProviderGemini:
		key, errd := credential(cfg, preset.Provider)
		if errd != nil {
			return nil, errd
		}
		base, err = NewGeminiClient(ctx, key, preset.Model, preset.Temperature)

	case config.ProviderOpenAI, config.ProviderDeepSeek, config.ProviderXAI:
		key, errd := credential(cfg, preset.Provider)
		if errd != nil {
			return nil, errd
		}
		base, err = NewOpenAIClient(preset.Provider, key, preset.Model, preset.Temperature)

	case config.ProviderAnthropic:
		key, errd := credential(cfg, preset.Provider)
		if errd != nil {
			return nil, errd
		}
		base, err = NewAnthropicClient(key, preset.Model, preset.Temperature)

	case config.ProviderOllama:
		// Local server; authenticated by reachability, not by key.
		base, err = NewOllamaClient(cfg.OllamaHost, preset.Model)

	default:
		return nil, config.Errorf("unsupported provider %q", preset.Provider)
	}
	if err != nil {
		return nil, err
	}

	return Chain(base,
		WithLogging(log),
		Retry(cfg.RetryAttempts, cfg.RetryBaseDelay),
		Limit(cfg.RequestsPerSecond, cfg.Burst),
	), nil
}

func credential(cfg config.Run, provider config.Provider) (string, error) {
	key := cfg.Credentials[provider]
	if key == "" {
		return "", config.Errorf("missing credentials for provider %q", provider)
	}
	return key, nil
}
