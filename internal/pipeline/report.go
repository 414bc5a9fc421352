package pipeline

import (
	"fmt"
	"strings"

	"agentrules/internal/config"
	"agentrules/internal/dispatch"
)

// Report renders the run as a single human-readable document: structure,
// per-stage sections, sub-agent outcomes and metrics. Persistence of the
// report is the caller's concern.
func (r *Result) Report(projectPath string) string {
	var sb strings.Builder
	rule := strings.Repeat("-", 30)

	sb.WriteString("Project Analysis Report for: " + projectPath + "\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	sb.WriteString("## Project Structure\n\n")
	sb.WriteString(r.Tree)
	sb.WriteString("\n\n")

	titles := map[string]string{
		config.StageDiscovery:     "Stage 1: Discovery",
		config.StagePlanning:      "Stage 2: Planning",
		config.StageDeepAnalysis:  "Stage 3: Deep Analysis",
		config.StageSynthesis:     "Stage 4: Synthesis",
		config.StageConsolidation: "Stage 5: Consolidation",
	}
	for _, stage := range config.Stages() {
		sb.WriteString(titles[stage] + "\n" + rule + "\n")
		out := r.StageOutputs[stage]
		if out == "" {
			out = "(no output)"
		}
		sb.WriteString(out + "\n\n")
	}

	ok, failed := dispatch.Split(r.Outcomes)
	sb.WriteString("Sub-Agent Outcomes\n" + rule + "\n")
	sb.WriteString(fmt.Sprintf("agents: %d parsed (%s), %d succeeded, %d failed\n",
		len(r.Definitions), r.ParseMode, len(ok), len(failed)))
	for _, o := range failed {
		sb.WriteString(fmt.Sprintf("  failed %s (%s): %v\n", o.Definition.ID, o.Definition.Name, o.Err))
	}
	if len(r.Skipped) > 0 {
		sb.WriteString(fmt.Sprintf("skipped files: %d\n", len(r.Skipped)))
		for _, s := range r.Skipped {
			sb.WriteString(fmt.Sprintf("  %s (%s)\n", s.Path, s.Reason))
		}
	}

	sb.WriteString("\nAnalysis Metrics\n" + rule + "\n")
	sb.WriteString(fmt.Sprintf("Time taken: %.2f seconds\n", r.Elapsed.Seconds()))
	sb.WriteString(fmt.Sprintf("Tokens: %d in / %d out\n", r.Usage.InputTokens, r.Usage.OutputTokens))
	return sb.String()
}
