package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-weave/photon-weave/sim"
	"github.com/photon-weave/photon-weave/sim/internal/testutil"
	"github.com/photon-weave/photon-weave/sim/trace"
)

func mustLoad(t *testing.T, path string) *Scenario {
	t.Helper()
	s, err := Load(path)
	require.NoError(t, err)
	return s
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := Parse([]byte(doc))
	require.NoError(t, err)
	return s
}

func run(t *testing.T, s *Scenario, tr *trace.SimulationTrace) *Result {
	t.Helper()
	r, err := NewRunner(s, sim.DefaultEngineConfig(), tr)
	require.NoError(t, err)
	res, err := r.Run()
	require.NoError(t, err)
	return res
}

func TestRun_HongOuMandelBunches(t *testing.T) {
	res := run(t, mustLoad(t, "testdata/hom.yaml"), nil)
	require.Len(t, res.Outcomes, 200)

	for i, shot := range res.Outcomes {
		a, b := shot["a.fock"], shot["b.fock"]
		assert.Equal(t, 2, a+b, "shot %d", i)
		assert.Contains(t, []int{0, 2}, a, "shot %d", i)
		assert.Equal(t, 0, shot["a.pol"], "partners measured in H")
		assert.Equal(t, 0, shot["b.pol"])
	}
	h := res.Histogram()
	assert.InDelta(t, 100, h["a.fock"][2], 30)
	assert.Equal(t, []string{"a.fock", "a.pol", "b.fock", "b.pol"}, res.Names())
}

func TestRun_DephasedDiagonalIsUnbiased(t *testing.T) {
	res := run(t, mustLoad(t, "testdata/polarizer.yaml"), nil)
	h := res.Histogram()["p"]
	assert.Equal(t, 400, h[0]+h[1])
	testutil.AssertFloat64Equal(t, "P(H)", 0.5, float64(h[0])/400, 0.2)
}

func TestRun_SameSeedSameOutcomes(t *testing.T) {
	s := mustLoad(t, "testdata/hom.yaml")
	first := run(t, s, nil)
	second := run(t, s, nil)
	assert.Equal(t, first.Outcomes, second.Outcomes)

	seed := int64(8)
	s.Seed = &seed
	third := run(t, s, nil)
	assert.NotEqual(t, first.Outcomes, third.Outcomes)
}

func TestRun_Deterministic(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want map[string]int
	}{
		{
			name: "full loss",
			doc: `
states: [{name: m, kind: fock, index: 2, dims: 3}]
steps:
  - {action: kraus, channel: damping, p: 1, targets: [m]}
  - {action: measure, targets: [m]}
`,
			want: map[string]int{"m": 0},
		},
		{
			name: "basis povm then measure",
			doc: `
states: [{name: q, kind: qudit, dims: 3, index: 2}]
steps:
  - {action: povm, basis: true, non_destructive: true, targets: [q]}
  - {action: measure, targets: [q]}
`,
			want: map[string]int{"q": 2},
		},
		{
			name: "combine reorder expand contract",
			doc: `
envelopes:
  - {name: a, fock: 1, fock_dims: 2}
  - {name: b, fock: 0, fock_dims: 2}
steps:
  - {action: combine, targets: [a.fock, b.fock]}
  - {action: reorder, targets: [b.fock]}
  - {action: expand, level: matrix, targets: [a.fock, b.fock]}
  - {action: contract, targets: [b.fock]}
  - {action: measure, partial: true, targets: [a.fock]}
  - {action: measure, partial: true, targets: [b.fock]}
`,
			want: map[string]int{"a.fock": 1, "b.fock": 0},
		},
		{
			name: "envelope povm folds partner",
			doc: `
envelopes: [{name: e, fock: 1, polarization: V}]
steps:
  - {action: povm, elements: [[1, 0, 0, 0], [0, 0, 0, 1]], targets: [e.fock]}
`,
			want: map[string]int{"e.fock": 1, "e.pol": 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustParse(t, tt.doc)
			s.Shots = 5
			res := run(t, s, nil)
			for _, shot := range res.Outcomes {
				assert.Equal(t, tt.want, shot)
			}
		})
	}
}

func TestRun_RecordsTrace(t *testing.T) {
	s := mustLoad(t, "testdata/hom.yaml")
	s.Shots = 3
	tr := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelOperations})
	run(t, s, tr)

	summary := trace.Summarize(tr)
	assert.Equal(t, 3, summary.Shots)
	assert.Equal(t, 3, summary.TotalOperations)
	assert.Equal(t, 3, summary.TotalMeasurements)
	assert.Equal(t, map[string]int{"beam-splitter": 3}, summary.OperatorCounts)
	assert.Equal(t, []int{3, 3}, tr.Operations[0].Dimensions)
	assert.Equal(t, "projective", tr.Measurements[0].Kind)
	assert.True(t, tr.Measurements[0].Destructive)
	assert.Len(t, tr.Measurements[0].Outcomes, 4)
}

func TestRun_EngineErrorNamesShotAndStep(t *testing.T) {
	s := mustParse(t, `
states: [{name: m, kind: fock, index: 0, dims: 2}]
steps:
  - {action: apply, operator: annihilation, targets: [m]}
`)
	r, err := NewRunner(s, sim.DefaultEngineConfig(), nil)
	require.NoError(t, err)
	_, err = r.Run()
	require.Error(t, err)
	assert.ErrorContains(t, err, "shot 0: step 0 (apply)")
}

func TestNewRunner_Rejects(t *testing.T) {
	_, err := NewRunner(&Scenario{}, sim.DefaultEngineConfig(), nil)
	assert.ErrorContains(t, err, "invalid scenario")

	s := mustParse(t, `
dimension: {threshold: 2}
states: [{name: q, kind: qudit, dims: 2}]
steps: [{action: measure, targets: [q]}]
`)
	_, err = NewRunner(s, sim.DefaultEngineConfig(), nil)
	assert.ErrorContains(t, err, "invalid engine config")
}

func TestRunner_DefaultsToOneShot(t *testing.T) {
	s := mustParse(t, `
states: [{name: q, kind: qudit, dims: 2}]
steps: [{action: measure, targets: [q]}]
`)
	r, err := NewRunner(s, sim.DefaultEngineConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Shots())
	res, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, []map[string]int{{"q": 0}}, res.Outcomes)
	assert.Equal(t, trace.TraceLevelNone, r.Trace().Config.Level)
}
