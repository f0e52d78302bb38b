package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunScenario_Golden(t *testing.T) {
	g := newGoldie(t)

	var buf bytes.Buffer
	require.NoError(t, runScenario(&buf, "testdata/loss.yaml", runOptions{traceLevel: "operations"}))
	g.Assert(t, "run_loss", buf.Bytes())

	// GIVEN CLI overrides for seed and shots and tracing off
	seedOverride, shotsOverride := int64(9), 2
	buf.Reset()
	require.NoError(t, runScenario(&buf, "testdata/loss.yaml", runOptions{
		seed:       &seedOverride,
		shots:      &shotsOverride,
		traceLevel: "none",
	}))
	// THEN the report reflects them and omits the trace summary
	g.Assert(t, "run_loss_overrides", buf.Bytes())
}

func TestRunScenario_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorContains(t, runScenario(&buf, "testdata/missing.yaml", runOptions{}), "reading scenario")
	assert.ErrorContains(t, runScenario(&buf, "testdata/loss.yaml", runOptions{traceLevel: "decisions"}), "unknown trace level")
	assert.Empty(t, buf.String())
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "plan")

	f := runCmd.Flags().ShorthandLookup("f")
	require.NotNil(t, f)
	assert.Equal(t, "scenario", f.Name)
}
