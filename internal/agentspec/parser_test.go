package agentspec

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newParser() *Parser {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &Parser{Log: log}
}

const wellFormedPlan = `Here is the analysis plan you asked for.

<agents>
  <agent id="agent_1">
    <name>Core Logic Agent</name>
    <description>Analyzes the main application logic</description>
    <file_assignments>
      <file>src/main.go</file>
      <file>src/engine.go</file>
    </file_assignments>
  </agent>
  <agent id="agent_2">
    <name>Test Coverage Agent</name>
    <description>Reviews the test suite</description>
    <file_assignments>
      <file>src/engine_test.go</file>
    </file_assignments>
  </agent>
</agents>

Good luck with the analysis.`

func TestParse_WellFormedMarkup(t *testing.T) {
	defs, mode := newParser().Parse(wellFormedPlan)
	require.Equal(t, ModeParsed, mode)
	require.Len(t, defs, 2)

	require.Equal(t, "agent_1", defs[0].ID)
	require.Equal(t, "Core Logic Agent", defs[0].Name)
	require.Equal(t, "Analyzes the main application logic", defs[0].Description)
	require.Equal(t, []string{"src/main.go", "src/engine.go"}, defs[0].Files)

	require.Equal(t, "agent_2", defs[1].ID)
	require.Equal(t, []string{"src/engine_test.go"}, defs[1].Files)
}

func TestParse_RoundTrip(t *testing.T) {
	defs, mode := newParser().Parse(wellFormedPlan)
	require.Equal(t, ModeParsed, mode)

	again, mode2 := newParser().Parse(RenderXML(defs))
	require.Equal(t, ModeParsed, mode2)
	require.Equal(t, defs, again)
}

func TestParse_FallbackOnMalformedMarkup(t *testing.T) {
	text := `<agents><agent id="oops"
The markup above is broken, but the plan is readable:

Agent 1: Pipeline Agent
Description: Examines the processing pipeline
Files: src/pipeline.go, src/stages.go

Agent 2: Storage Agent
Description: Looks at persistence
Files: internal/store.go
`
	defs, mode := newParser().Parse(text)
	require.Equal(t, ModeFallbackParsed, mode)
	require.Len(t, defs, 2)

	require.Equal(t, "agent_1", defs[0].ID)
	require.Equal(t, "Pipeline Agent", defs[0].Name)
	require.Equal(t, "Examines the processing pipeline", defs[0].Description)
	require.Contains(t, defs[0].Files, "src/pipeline.go")
	require.Contains(t, defs[0].Files, "src/stages.go")

	require.Equal(t, "agent_2", defs[1].ID)
	require.Contains(t, defs[1].Files, "internal/store.go")
}

func TestParse_Unparseable(t *testing.T) {
	defs, mode := newParser().Parse("The model refused to plan anything useful today.")
	require.Equal(t, ModeUnparseable, mode)
	require.Empty(t, defs)
}

func TestParse_DuplicateIdentifiersDropped(t *testing.T) {
	text := `<agents>
  <agent id="agent_1"><name>First</name><description>d</description>
    <file_assignments><file>a.go</file></file_assignments></agent>
  <agent id="agent_1"><name>Second</name><description>d</description>
    <file_assignments><file>b.go</file></file_assignments></agent>
</agents>`
	defs, mode := newParser().Parse(text)
	require.Equal(t, ModeParsed, mode)
	require.Len(t, defs, 1)
	require.Equal(t, "First", defs[0].Name)
}

func TestFlagUnknownFiles(t *testing.T) {
	defs := []Definition{{
		ID:    "agent_1",
		Files: []string{"known.go", "ghost.go"},
	}}
	FlagUnknownFiles(defs, map[string]struct{}{"known.go": {}})
	require.Equal(t, []string{"ghost.go"}, defs[0].UnknownFiles)
	// The definition keeps all assignments even when some are unknown.
	require.Equal(t, []string{"known.go", "ghost.go"}, defs[0].Files)
}
