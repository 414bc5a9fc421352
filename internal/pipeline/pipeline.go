// Package pipeline drives the five-stage analysis state machine: Discovery,
// Planning, DeepAnalysis, Synthesis, Consolidation. Stages execute strictly
// in that order; DeepAnalysis fans out internally but never relaxes the
// external ordering.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"agentrules/internal/agentspec"
	"agentrules/internal/config"
	"agentrules/internal/dispatch"
	"agentrules/internal/inventory"
	"agentrules/internal/llm"
)

// inventoryCacheSize bounds the decoded-file cache shared across runs of
// one orchestrator.
const inventoryCacheSize = 1024

// Stage keys, aliased locally to keep call sites short.
const (
	stageKeyDiscovery     = config.StageDiscovery
	stageKeyPlanning      = config.StagePlanning
	stageKeyDeepAnalysis  = config.StageDeepAnalysis
	stageKeySynthesis     = config.StageSynthesis
	stageKeyConsolidation = config.StageConsolidation
)

// Context is the forward-accumulating state threaded through all stages.
// Each field is written by exactly one stage and read-only afterwards; the
// orchestrator writes only after a stage's concurrent work has fully joined.
type Context struct {
	Root   string
	Config config.Run

	Inventory []inventory.FileRecord
	Skipped   []inventory.Skipped
	Tree      string

	StageOutputs map[string]string

	Definitions []agentspec.Definition
	ParseMode   agentspec.ParseMode

	Outcomes []dispatch.Outcome

	Artifact string
}

// Result is what a run hands back for persistence and observability. File
// naming and storage format belong to the caller.
type Result struct {
	Artifact     string
	StageOutputs map[string]string
	Definitions  []agentspec.Definition
	ParseMode    agentspec.ParseMode
	Outcomes     []dispatch.Outcome
	Skipped      []inventory.Skipped
	Tree         string
	Usage        llm.Usage
	Elapsed      time.Duration
}

// Orchestrator owns the stage sequencing for one run. Clients maps each
// stage key to a constructed model client; the factory has already applied
// retry, throttling and logging middleware.
type Orchestrator struct {
	Config  config.Run
	Clients map[string]llm.Client
	Log     *logrus.Logger

	// Builder constructs the file inventory. When nil, a builder derived
	// from Config is used.
	Builder *inventory.Builder
}

// NewOrchestrator wires an orchestrator with one client per stage and an
// inventory builder whose cache persists across runs.
func NewOrchestrator(ctx context.Context, cfg config.Run, log *logrus.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	clients := make(map[string]llm.Client, len(config.Stages()))
	for _, stage := range config.Stages() {
		preset, _ := cfg.Preset(stage)
		cli, err := llm.New(ctx, preset, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage, err)
		}
		clients[stage] = cli
	}
	cache, err := inventory.NewCache(inventoryCacheSize)
	if err != nil {
		return nil, err
	}
	builder := &inventory.Builder{
		Exclude:  cfg.ExcludePatterns,
		MaxFiles: cfg.MaxFiles,
		Workers:  cfg.Workers,
		Cache:    cache,
		Log:      log,
	}
	return &Orchestrator{Config: cfg, Clients: clients, Log: log, Builder: builder}, nil
}

// Close releases every stage client.
func (o *Orchestrator) Close() {
	for _, c := range o.Clients {
		_ = c.Close()
	}
}

// Run executes the pipeline. Discovery or Planning failing outright is
// fatal. Individual DeepAnalysis failures are absorbed; the run still
// attempts to reach Consolidation with whatever partial context exists.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	started := time.Now()

	c := &Context{
		Root:         o.Config.ProjectPath,
		Config:       o.Config,
		StageOutputs: map[string]string{},
	}
	var usage llm.Usage

	// Inventory feeds every stage its project context.
	builder := o.Builder
	if builder == nil {
		builder = &inventory.Builder{
			Exclude:  o.Config.ExcludePatterns,
			MaxFiles: o.Config.MaxFiles,
			Workers:  o.Config.Workers,
			Log:      log,
		}
	}
	records, skipped, err := builder.Build(ctx, c.Root)
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	c.Inventory = records
	c.Skipped = skipped
	c.Tree = inventory.RenderTree(inventory.Paths(records))
	log.WithFields(logrus.Fields{
		"files":   len(records),
		"skipped": len(skipped),
	}).Info("file inventory built")

	// Stage 1: Discovery. A failed call here is fatal.
	discovery, u, err := o.call(ctx, stageKeyDiscovery, llm.Request{
		System: discoverySystem,
		Prompt: discoveryPrompt(c.Tree, c.Inventory),
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	usage.Add(u)
	c.StageOutputs[stageKeyDiscovery] = discovery

	// Stage 2: Planning. Also fatal when its single call fails.
	plan, u, err := o.call(ctx, stageKeyPlanning, llm.Request{
		System: planningSystem,
		Prompt: planningPrompt(discovery, c.Tree),
	})
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	usage.Add(u)
	c.StageOutputs[stageKeyPlanning] = plan

	// Parse the plan into sub-agent definitions; the task list for stage 3
	// is not known until here.
	parser := &agentspec.Parser{Log: log}
	defs, mode := parser.Parse(plan)
	known := make(map[string]struct{}, len(records))
	for _, r := range records {
		known[r.Path] = struct{}{}
	}
	agentspec.FlagUnknownFiles(defs, known)
	for _, d := range defs {
		if len(d.UnknownFiles) > 0 {
			log.WithFields(logrus.Fields{
				"agent":   d.ID,
				"unknown": d.UnknownFiles,
			}).Warn("agent assigned files absent from inventory")
		}
	}
	if mode == agentspec.ModeUnparseable && o.Config.AllowFallbackAgents {
		defs = fallbackDefinitions(records)
		log.WithField("agents", len(defs)).Warn("substituting generic fallback agents")
	}
	c.Definitions = defs
	c.ParseMode = mode
	log.WithFields(logrus.Fields{
		"agents": len(defs),
		"mode":   mode.String(),
	}).Info("agent definitions parsed")

	// Stage 3: DeepAnalysis. Zero definitions means zero sub-agents; the
	// stage still completes and Synthesis is told no results exist.
	if len(defs) > 0 {
		cli, ok := o.Clients[stageKeyDeepAnalysis]
		if !ok {
			return nil, config.Errorf("no client for stage %q", stageKeyDeepAnalysis)
		}
		byPath := make(map[string]inventory.FileRecord, len(records))
		for _, r := range records {
			byPath[r.Path] = r
		}
		invocations := make([]dispatch.Invocation, 0, len(defs))
		for _, d := range defs {
			system, prompt := deepAnalysisRequest(d, byPath, c.Tree)
			invocations = append(invocations, dispatch.Invocation{
				Definition: d,
				Request:    llm.Request{System: system, Prompt: prompt},
			})
		}
		dispatcher := &dispatch.Dispatcher{
			Client:  cli,
			Workers: o.Config.Workers,
			Log:     log,
		}
		c.Outcomes = dispatcher.Dispatch(llm.WithStage(ctx, stageKeyDeepAnalysis), invocations)
		for _, out := range c.Outcomes {
			usage.Add(out.Usage)
		}
		succeeded, failed := dispatch.Split(c.Outcomes)
		log.WithFields(logrus.Fields{
			"succeeded": len(succeeded),
			"failed":    len(failed),
		}).Info("deep analysis completed")
	} else {
		log.Info("deep analysis dispatched zero sub-agents")
	}
	c.StageOutputs[stageKeyDeepAnalysis] = synthesisPrompt(c.Outcomes)

	// Stage 4: Synthesis over the merged stage-3 results. Its own call
	// failing is fatal even though stage-3 failures were absorbed.
	synthesis, u, err := o.call(ctx, stageKeySynthesis, llm.Request{
		System: synthesisSystem,
		Prompt: c.StageOutputs[stageKeyDeepAnalysis],
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	usage.Add(u)
	c.StageOutputs[stageKeySynthesis] = synthesis

	// Stage 5: Consolidation produces the final artifact.
	artifact, u, err := o.call(ctx, stageKeyConsolidation, llm.Request{
		System: consolidationSystem,
		Prompt: consolidationPrompt(c),
	})
	if err != nil {
		return nil, fmt.Errorf("consolidation: %w", err)
	}
	usage.Add(u)
	c.StageOutputs[stageKeyConsolidation] = artifact
	c.Artifact = artifact

	return &Result{
		Artifact:     c.Artifact,
		StageOutputs: c.StageOutputs,
		Definitions:  c.Definitions,
		ParseMode:    c.ParseMode,
		Outcomes:     c.Outcomes,
		Skipped:      c.Skipped,
		Tree:         c.Tree,
		Usage:        usage,
		Elapsed:      time.Since(started),
	}, nil
}

func (o *Orchestrator) call(ctx context.Context, stage string, req llm.Request) (string, llm.Usage, error) {
	cli, ok := o.Clients[stage]
	if !ok {
		return "", llm.Usage{}, config.Errorf("no client for stage %q", stage)
	}
	resp, err := cli.Generate(llm.WithStage(ctx, stage), req)
	if err != nil {
		return "", llm.Usage{}, err
	}
	return resp.Text, resp.Usage, nil
}

// fallbackDefinitions mirrors the original tool's safety net: three generic
// agents, each assigned the whole inventory. Only used when explicitly
// enabled; the parse mode in the result still reports Unparseable.
func fallbackDefinitions(records []inventory.FileRecord) []agentspec.Definition {
	all := inventory.Paths(records)
	return []agentspec.Definition{
		{ID: "agent_1", Name: "Code Analysis Agent",
			Description: "Analyzes code quality, patterns, and implementation details", Files: all},
		{ID: "agent_2", Name: "Dependency Mapping Agent",
			Description: "Maps dependencies between files and modules", Files: all},
		{ID: "agent_3", Name: "Architecture Agent",
			Description: "Analyzes overall architecture and design patterns", Files: all},
	}
}
