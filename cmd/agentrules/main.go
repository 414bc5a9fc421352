package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"agentrules/internal/config"
	"agentrules/internal/pipeline"
)

func main() {
	repo := flag.String("repo", "", "path to the project root")
	outDir := flag.String("out", "out", "output directory for stage outputs and the final artifact")
	provider := flag.String("provider", "gemini", "default provider: gemini, openai, anthropic, deepseek, xai, ollama")
	model := flag.String("model", "gemini-2.5-flash", "default model id for all stages")
	exclude := flag.String("exclude", "", "extra exclusion patterns, comma separated")
	maxFiles := flag.Int("max-files", 500, "maximum files in the inventory")
	workers := flag.Int("workers", 4, "worker pool size for reads and sub-agents")
	rps := flag.Float64("rps", 0, "provider requests per second (0 = unthrottled)")
	fallbackAgents := flag.Bool("fallback-agents", false, "substitute generic agents when the plan yields none")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *repo == "" {
		log.Fatal("--repo is required")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	_ = godotenv.Load()

	cfg := config.Default(*repo)
	cfg.MaxFiles = *maxFiles
	cfg.Workers = *workers
	cfg.RequestsPerSecond = *rps
	cfg.AllowFallbackAgents = *fallbackAgents
	for _, p := range strings.Split(*exclude, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cfg.ExcludePatterns = append(cfg.ExcludePatterns, p)
		}
	}
	preset := config.ModelPreset{Provider: config.Provider(*provider), Model: *model}
	for _, stage := range config.Stages() {
		cfg.Presets[stage] = preset
	}
	cfg.Credentials = credentialsFromEnv()
	cfg.OllamaHost = os.Getenv("OLLAMA_HOST")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := pipeline.NewOrchestrator(ctx, cfg, log)
	if err != nil {
		log.Fatal(err)
	}
	defer orch.Close()

	res, err := orch.Run(ctx)
	if err != nil {
		log.Fatal(err)
	}

	for stage, text := range res.StageOutputs {
		writeText(log, *outDir, stage+".md", text)
	}
	writeText(log, *outDir, "rules.md", res.Artifact)
	writeText(log, *outDir, "report.md", res.Report(*repo))
	log.WithField("out", *outDir).Info("analysis completed")
}

func credentialsFromEnv() map[config.Provider]string {
	creds := map[config.Provider]string{}
	for provider, envVar := range map[config.Provider]string{
		config.ProviderGemini:    "GEMINI_API_KEY",
		config.ProviderOpenAI:    "OPENAI_API_KEY",
		config.ProviderAnthropic: "ANTHROPIC_API_KEY",
		config.ProviderDeepSeek:  "DEEPSEEK_API_KEY",
		config.ProviderXAI:       "XAI_API_KEY",
	} {
		if v := os.Getenv(envVar); v != "" {
			creds[provider] = v
		}
	}
	return creds
}

func writeText(log *logrus.Logger, dir, name, text string) {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
		log.WithField("file", name).WithError(err).Error("write failed")
	}
}
