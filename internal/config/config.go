// Package config holds the explicit run configuration threaded through the
// pipeline. There are no package-level singletons: a Run value is built once
// at startup, validated, and passed down.
package config

import (
	"fmt"
	"os"
	"time"
)

// Provider identifies a model backend.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderDeepSeek  Provider = "deepseek"
	ProviderXAI       Provider = "xai"
	ProviderOllama    Provider = "ollama"
)

// Providers lists every supported backend.
func Providers() []Provider {
	return []Provider{
		ProviderGemini, ProviderOpenAI, ProviderAnthropic,
		ProviderDeepSeek, ProviderXAI, ProviderOllama,
	}
}

// Stage keys, in execution order.
const (
	StageDiscovery     = "discovery"
	StagePlanning      = "planning"
	StageDeepAnalysis  = "deep_analysis"
	StageSynthesis     = "synthesis"
	StageConsolidation = "consolidation"
)

// Stages returns the stage keys in strict execution order.
func Stages() []string {
	return []string{
		StageDiscovery, StagePlanning, StageDeepAnalysis,
		StageSynthesis, StageConsolidation,
	}
}

// ModelPreset selects the model for one stage.
type ModelPreset struct {
	Provider    Provider
	Model       string
	Temperature float32
}

// ConfigurationError reports an invalid or incomplete run configuration.
// All configuration problems surface before the first stage executes.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Reason }

// Errorf builds a ConfigurationError from a format string.
func Errorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// Run is the full configuration for one analysis run.
type Run struct {
	ProjectPath     string
	ExcludePatterns []string
	MaxFiles        int
	Workers         int

	// Presets maps each stage key to its model selection.
	Presets map[string]ModelPreset

	Credentials map[Provider]string
	OllamaHost  string

	// AllowFallbackAgents substitutes generic agents when the planning
	// output yields no parseable definitions.
	AllowFallbackAgents bool

	RetryAttempts  int
	RetryBaseDelay time.Duration

	// RequestsPerSecond throttles provider calls; zero means unthrottled.
	RequestsPerSecond float64
	Burst             int
}

// Default returns the baseline configuration for a project path. Stage
// presets and credentials still have to be filled in by the caller.
func Default(projectPath string) Run {
	return Run{
		ProjectPath: projectPath,
		ExcludePatterns: []string{
			".git", "node_modules", "vendor", "dist", "build", "target",
			"__pycache__", ".venv", "venv", ".idea", ".vscode",
		},
		MaxFiles:       500,
		Workers:        4,
		Presets:        map[string]ModelPreset{},
		RetryAttempts:  3,
		RetryBaseDelay: 300 * time.Millisecond,
		Burst:          1,
	}
}

// Validate checks the run configuration. Every failure is a
// ConfigurationError; the first problem found is reported.
func (r Run) Validate() error {
	if r.ProjectPath == "" {
		return Errorf("project path is empty")
	}
	info, err := os.Stat(r.ProjectPath)
	if err != nil {
		return Errorf("project path %q: %v", r.ProjectPath, err)
	}
	if !info.IsDir() {
		return Errorf("project path %q is not a directory", r.ProjectPath)
	}
	if r.MaxFiles <= 0 {
		return Errorf("max files must be positive, got %d", r.MaxFiles)
	}
	if r.Workers <= 0 {
		return Errorf("workers must be positive, got %d", r.Workers)
	}
	if r.RetryAttempts <= 0 {
		return Errorf("retry attempts must be positive, got %d", r.RetryAttempts)
	}
	if r.RequestsPerSecond < 0 {
		return Errorf("requests per second must not be negative, got %g", r.RequestsPerSecond)
	}
	for _, stage := range Stages() {
		preset, ok := r.Presets[stage]
		if !ok {
			return Errorf("no model preset for stage %q", stage)
		}
		if preset.Provider == "" || preset.Model == "" {
			return Errorf("incomplete model preset for stage %q", stage)
		}
	}
	return nil
}

// Preset returns the model preset for a stage key.
func (r Run) Preset(stage string) (ModelPreset, bool) {
	p, ok := r.Presets[stage]
	return p, ok
}
