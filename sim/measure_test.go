package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/photon-weave/photon-weave/sim/internal/linalg"
)

func projectors(n int) []*mat.CDense {
	out := make([]*mat.CDense, n)
	for k := range out {
		out[k] = linalg.Outer(linalg.Basis(n, k))
	}
	return out
}

func TestMeasurePOVM_FrequencyConverges(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	povm := []*mat.CDense{
		mat.NewCDense(2, 2, []complex128{0.8, 0, 0, 0.3}),
		mat.NewCDense(2, 2, []complex128{0.2, 0, 0, 0.7}),
	}
	const shots = 1000
	hits := 0
	for i := 0; i < shots; i++ {
		s := NewPolarization(PolarizationH)
		out, err := s.MeasurePOVM(ctx, povm, MeasureOptions{})
		require.NoError(t, err)
		if out[s] == 0 {
			hits++
		}
		assert.True(t, s.Measured())
	}
	assert.InDelta(t, 0.8, float64(hits)/shots, 0.06)
}

func TestMeasure_SameSeedSameOutcomes(t *testing.T) {
	run := func() []int {
		ctx := NewContext(DefaultEngineConfig())
		var got []int
		for i := 0; i < 20; i++ {
			s := NewPolarization(PolarizationD)
			out, err := s.Measure(ctx, MeasureOptions{})
			require.NoError(t, err)
			got = append(got, out[s])
		}
		return got
	}
	assert.Equal(t, run(), run())
}

func TestMeasurePOVM_NonDestructiveCollapses(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Contractions = true
	ctx := NewContext(cfg)
	s, err := NewFromVector(KindQudit, linalg.Column(1, 1, 1))
	require.NoError(t, err)

	out, err := s.MeasurePOVM(ctx, projectors(3), MeasureOptions{NonDestructive: true})
	require.NoError(t, err)
	assert.False(t, s.Measured())
	l, ok := s.Label()
	require.True(t, ok, "collapsed pure state contracts to a label")
	assert.Equal(t, out[s], l)
}

func TestMeasurePOVM_ZeroProbabilityOutcomeFails(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.ContractionTolerance = 0.5
	ctx := NewContext(cfg)
	s, err := NewFromVector(KindQudit, linalg.Column(1, 1, 1))
	require.NoError(t, err)

	_, err = s.MeasurePOVM(ctx, projectors(3), MeasureOptions{NonDestructive: true})
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.False(t, s.Measured())
	assert.Equal(t, Vector, s.Level())
}

func TestMeasurePOVM_RejectsInvalidSets(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	half := linalg.Identity(2)
	linalg.Scale(half, 0.5)

	tests := []struct {
		name string
		povm []*mat.CDense
		want error
	}{
		{"does not sum to identity", []*mat.CDense{half}, ErrInvalidKrausSet},
		{"wrong dimension", projectors(3), ErrDimensionMismatch},
		{"empty", nil, ErrInvalidKrausSet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPolarization(PolarizationH)
			_, err := s.MeasurePOVM(ctx, tt.povm, MeasureOptions{})
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, s.Measured())
		})
	}
}

func TestMeasurePOVM_InSpaceFoldsPartner(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	env := NewEnvelope(WithFock(NewFock(1, WithDimensions(2))))
	_, err := env.Combine()
	require.NoError(t, err)

	out, err := env.Polarization().MeasurePOVM(ctx, projectors(2), MeasureOptions{})
	require.NoError(t, err)
	assert.Equal(t, Outcomes{env.Polarization(): 0, env.Fock(): 1}, out)
	assert.True(t, env.Measured())
}

func TestMeasurePOVM_InSpaceNonDestructiveKeepsSlots(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	p := NewPolarization(PolarizationV)
	f := NewFock(0, WithDimensions(2))
	ps, err := Combine(p, f)
	require.NoError(t, err)

	k, err := ps.MeasurePOVM(ctx, projectors(2), MeasureOptions{NonDestructive: true}, p)
	require.NoError(t, err)
	assert.Equal(t, 1, k)
	assert.Equal(t, Matrix, ps.Level())
	assert.Equal(t, []*State{p, f}, ps.States())
	probs, err := ps.Probabilities(p, f)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 1, 0}, probs, 1e-12)
}

func TestMeasure_PartialLeavesPartner(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())

	env := NewEnvelope(WithFock(NewFock(2)))
	out, err := env.Fock().Measure(ctx, MeasureOptions{})
	require.NoError(t, err)
	assert.Equal(t, Outcomes{env.Fock(): 2, env.Polarization(): 0}, out)

	env = NewEnvelope(WithFock(NewFock(2)), WithPolarization(NewPolarization(PolarizationV)))
	out, err = env.Fock().Measure(ctx, MeasureOptions{Partial: true})
	require.NoError(t, err)
	assert.Equal(t, Outcomes{env.Fock(): 2}, out)
	assert.False(t, env.Polarization().Measured())
}

func TestMeasure_NonDestructiveStandaloneCollapsesToLabel(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	s := NewPolarization(PolarizationA)
	out, err := s.Measure(ctx, MeasureOptions{NonDestructive: true})
	require.NoError(t, err)
	l, ok := s.Label()
	require.True(t, ok)
	assert.Equal(t, out[s], l)
	assert.False(t, s.Measured())
}
