// Package agentspec extracts sub-agent definitions from the free-form text
// produced by the planning stage. A strict markup parse is attempted first;
// when that fails, a textual-pattern fallback recognizes the same logical
// fields from loosely structured text. Which path produced a result is
// always part of the return value, never hidden.
package agentspec

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseMode tags which strategy produced the definitions.
type ParseMode int

const (
	ModeParsed ParseMode = iota
	ModeFallbackParsed
	ModeUnparseable
)

func (m ParseMode) String() string {
	switch m {
	case ModeParsed:
		return "parsed"
	case ModeFallbackParsed:
		return "fallback_parsed"
	default:
		return "unparseable"
	}
}

// Definition is one sub-agent specification. Immutable once produced;
// identifiers are unique within a parse result.
type Definition struct {
	ID          string
	Name        string
	Description string
	Files       []string

	// UnknownFiles lists assigned paths absent from the inventory.
	// Populated by FlagUnknownFiles; the definition is kept regardless.
	UnknownFiles []string
}

// Parser turns planning-stage output into sub-agent definitions.
type Parser struct {
	Log *logrus.Logger
}

type xmlAgents struct {
	XMLName xml.Name   `xml:"agents"`
	Agents  []xmlAgent `xml:"agent"`
}

type xmlAgent struct {
	ID          string   `xml:"id,attr"`
	Name        string   `xml:"name"`
	Description string   `xml:"description"`
	Files       []string `xml:"file_assignments>file"`
}

var (
	reAgentsBlock = regexp.MustCompile(`(?s)<agents>.*</agents>`)

	// Fallback: "Agent 1: Pipeline Agent" / "**Agent 2 - Storage**" headings.
	reAgentHeading = regexp.MustCompile(`(?im)^\W*agent[ _]?(\d+)\s*[:\-–]?\s*(.*)$`)
	reDescription  = regexp.MustCompile(`(?im)^\W*(?:description|responsibility|role)\s*[:\-]\s*(.+)$`)
	// Path-looking tokens with an extension, e.g. src/app/main.go.
	rePathToken = regexp.MustCompile(`[A-Za-z0-9_][A-Za-z0-9_./\-]*\.[A-Za-z0-9_]+`)
)

// Parse applies the two-tier strategy. An empty result with ModeUnparseable
// is not an error: the deep-analysis stage then dispatches zero sub-agents.
func (p *Parser) Parse(text string) ([]Definition, ParseMode) {
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	defs, err := parseMarkup(text)
	if err == nil && len(defs) > 0 {
		return dedupe(defs, log), ModeParsed
	}
	if err != nil {
		log.WithError(err).Info("structured agent markup parse failed, using textual fallback")
	} else {
		log.Info("structured agent markup yielded no agents, using textual fallback")
	}

	defs = parseFallback(text)
	if len(defs) > 0 {
		return dedupe(defs, log), ModeFallbackParsed
	}
	log.Warn("no agent definitions recognized in planning output")
	return nil, ModeUnparseable
}

// parseMarkup is the strict pass: locate the <agents> element and decode it.
func parseMarkup(text string) ([]Definition, error) {
	block := reAgentsBlock.FindString(text)
	if block == "" {
		return nil, fmt.Errorf("no <agents> element found")
	}
	var doc xmlAgents
	if err := xml.Unmarshal([]byte(block), &doc); err != nil {
		return nil, err
	}
	defs := make([]Definition, 0, len(doc.Agents))
	for i, a := range doc.Agents {
		id := strings.TrimSpace(a.ID)
		if id == "" {
			id = fmt.Sprintf("agent_%d", i+1)
		}
		defs = append(defs, Definition{
			ID:          id,
			Name:        strings.TrimSpace(a.Name),
			Description: strings.TrimSpace(a.Description),
			Files:       cleanPaths(a.Files),
		})
	}
	return defs, nil
}

// parseFallback recognizes agent segments in loose text: a numbered agent
// heading, an optional description line, and any path-looking tokens up to
// the next heading.
func parseFallback(text string) []Definition {
	headings := reAgentHeading.FindAllStringSubmatchIndex(text, -1)
	if len(headings) == 0 {
		return nil
	}
	var defs []Definition
	for i, h := range headings {
		start := h[0]
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		segment := text[start:end]

		num := text[h[2]:h[3]]
		name := strings.TrimSpace(strings.Trim(text[h[4]:h[5]], "*_` "))
		if name == "" {
			name = "Agent " + num
		}
		desc := ""
		if m := reDescription.FindStringSubmatch(segment); m != nil {
			desc = strings.TrimSpace(m[1])
		}
		defs = append(defs, Definition{
			ID:          "agent_" + num,
			Name:        name,
			Description: desc,
			Files:       cleanPaths(rePathToken.FindAllString(segment, -1)),
		})
	}
	return defs
}

// dedupe enforces unique identifiers: the later duplicate is dropped with a
// logged warning.
func dedupe(defs []Definition, log *logrus.Logger) []Definition {
	seen := map[string]bool{}
	out := defs[:0]
	for _, d := range defs {
		if seen[d.ID] {
			log.WithField("id", d.ID).Warn("dropping agent definition with duplicate identifier")
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}

// FlagUnknownFiles marks assigned paths absent from the inventory. The
// definitions are kept; unknown assignments are surfaced, not dropped.
func FlagUnknownFiles(defs []Definition, known map[string]struct{}) {
	for i := range defs {
		defs[i].UnknownFiles = nil
		for _, f := range defs[i].Files {
			if _, ok := known[f]; !ok {
				defs[i].UnknownFiles = append(defs[i].UnknownFiles, f)
			}
		}
	}
}

// RenderXML serializes definitions back into the strict markup grammar.
// Parse(RenderXML(defs)) returns the same definitions.
func RenderXML(defs []Definition) string {
	doc := xmlAgents{}
	for _, d := range defs {
		doc.Agents = append(doc.Agents, xmlAgent{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Files:       d.Files,
		})
	}
	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func cleanPaths(raw []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range raw {
		f = strings.TrimSpace(f)
		f = strings.TrimPrefix(f, "./")
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
