package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"agentrules/internal/agentspec"
	"agentrules/internal/dispatch"
	"agentrules/internal/inventory"
)

// Prompt assembly for the five stages. Wording is deliberately plain; the
// orchestration contract, not prompt craft, is what this package owns.

const (
	discoverySystem = "You are a senior software analyst. Survey the project and report " +
		"its languages, frameworks, entry points, build tooling and overall layout."

	planningSystem = "You are an analysis planner. Based on the discovery findings, define " +
		"specialized analysis agents. Reply with an <agents> XML element containing one " +
		"<agent id=\"agent_N\"> per agent, each with <name>, <description> and a " +
		"<file_assignments> list of <file> paths."

	deepAnalysisSystem = "You are %s. %s Analyze your assigned files in depth: purpose, " +
		"structure, conventions, notable patterns and pitfalls."

	synthesisSystem = "You are a synthesis analyst. Merge the independent deep-analysis " +
		"findings into one coherent picture of the project."

	consolidationSystem = "You are writing the final assistant-configuration document. " +
		"Consolidate everything known about the project into clear, actionable guidance " +
		"for an AI coding assistant working in this repository."
)

func discoveryPrompt(tree string, records []inventory.FileRecord) string {
	var sb strings.Builder
	sb.WriteString("<project_structure>\n")
	sb.WriteString(tree)
	sb.WriteString("\n</project_structure>\n\n")
	sb.WriteString(fmt.Sprintf("The inventory holds %d readable files.\n", len(records)))

	// Manifests give the discovery model its tech-stack signal.
	manifests := map[string]bool{
		"package.json": true, "go.mod": true, "requirements.txt": true,
		"pyproject.toml": true, "pom.xml": true, "build.gradle": true,
		"Cargo.toml": true, "Dockerfile": true, "docker-compose.yml": true,
		"Makefile": true,
	}
	for _, r := range records {
		base := r.Path
		if i := strings.LastIndex(base, "/"); i >= 0 {
			base = base[i+1:]
		}
		if manifests[base] {
			sb.WriteString("\n[MANIFEST ")
			sb.WriteString(r.Path)
			sb.WriteString("]\n")
			sb.WriteString(truncate(r.Content, 4000))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func planningPrompt(discovery, tree string) string {
	var sb strings.Builder
	sb.WriteString("Discovery findings:\n\n")
	sb.WriteString(discovery)
	sb.WriteString("\n\n<project_structure>\n")
	sb.WriteString(tree)
	sb.WriteString("\n</project_structure>\n")
	return sb.String()
}

func deepAnalysisRequest(def agentspec.Definition, byPath map[string]inventory.FileRecord, tree string) (system, prompt string) {
	system = fmt.Sprintf(deepAnalysisSystem, def.Name, def.Description)

	var sb strings.Builder
	sb.WriteString("<project_structure>\n")
	sb.WriteString(tree)
	sb.WriteString("\n</project_structure>\n\nAssigned files:\n")
	for _, f := range def.Files {
		rec, ok := byPath[f]
		if !ok {
			// Flagged unknown assignment; nothing to inline.
			continue
		}
		sb.WriteString("\n[FILE ")
		sb.WriteString(rec.Path)
		sb.WriteString("]\n")
		sb.WriteString(rec.Content)
		sb.WriteString("\n[END FILE]\n")
	}
	return system, sb.String()
}

func synthesisPrompt(outcomes []dispatch.Outcome) string {
	ok, failed := dispatch.Split(outcomes)
	var sb strings.Builder
	if len(ok) == 0 {
		sb.WriteString("No deep-analysis results are available for this project.\n")
	}
	for _, o := range ok {
		sb.WriteString(fmt.Sprintf("\n[AGENT %s: %s]\n", o.Definition.ID, o.Definition.Name))
		sb.WriteString(o.Text)
		sb.WriteString("\n")
	}
	if len(failed) > 0 {
		sb.WriteString("\nAgents that failed to produce results:\n")
		for _, o := range failed {
			sb.WriteString(fmt.Sprintf("- %s (%s): %v\n", o.Definition.ID, o.Definition.Name, o.Err))
		}
	}
	return sb.String()
}

func consolidationPrompt(c *Context) string {
	var sb strings.Builder
	sb.WriteString("Discovery:\n")
	sb.WriteString(c.StageOutputs[stageKeyDiscovery])
	sb.WriteString("\n\nPlan:\n")
	sb.WriteString(c.StageOutputs[stageKeyPlanning])
	sb.WriteString("\n\nSynthesis:\n")
	sb.WriteString(c.StageOutputs[stageKeySynthesis])
	sb.WriteString("\n")
	return sb.String()
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[... truncated ...]"
}
