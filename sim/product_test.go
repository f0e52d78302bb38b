package sim

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/photon-weave/photon-weave/sim/internal/linalg"
	"github.com/photon-weave/photon-weave/sim/internal/testutil"
	"github.com/photon-weave/photon-weave/sim/ops"
)

func TestCombine_KroneckerInOrderOfAppearance(t *testing.T) {
	p := NewPolarization(PolarizationV)
	f := NewFock(1, WithDimensions(3))
	ps, err := Combine(p, f)
	require.NoError(t, err)

	assert.Equal(t, []*State{p, f}, ps.States())
	assert.Equal(t, []int{2, 3}, ps.Dimensions())
	assert.Equal(t, Vector, ps.Level())
	assert.Same(t, ps, p.Space())
	_, ok := p.Label()
	assert.False(t, ok, "combined state keeps no private data")

	v, err := ps.Vector()
	require.NoError(t, err)
	testutil.AssertMatrixClose(t, linalg.Basis(6, 4), v, 0)
}

func TestCombine_MergesExistingSpacesAndSyncsLevel(t *testing.T) {
	a, b := NewQudit(2, 0), NewQudit(2, 1)
	c := NewQudit(3, 2)
	first, err := Combine(a, b)
	require.NoError(t, err)
	require.NoError(t, c.ExpandTo(Matrix))

	ps, err := Combine(c, b)
	require.NoError(t, err)
	assert.True(t, first.Released())
	assert.Equal(t, []*State{c, a, b}, ps.States())
	assert.Equal(t, Matrix, ps.Level())

	rho, err := ps.DensityMatrix()
	require.NoError(t, err)
	// |2⟩⊗|0⟩⊗|1⟩ is index 2*4 + 0*2 + 1.
	testutil.AssertMatrixClose(t, linalg.Outer(linalg.Basis(12, 9)), rho, 0)

	same, err := Combine(a, c)
	require.NoError(t, err)
	assert.Same(t, ps, same)

	_, err = first.DensityMatrix()
	assert.ErrorIs(t, err, ErrInvariantViolation, "merged away")
	assert.NotErrorIs(t, err, ErrAlreadyMeasured)
}

func TestCombine_Rejects(t *testing.T) {
	a := NewQudit(2, 0)
	_, err := Combine(a)
	assert.ErrorIs(t, err, ErrInvariantViolation)
	_, err = Combine(a, a)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	m := NewQudit(2, 0)
	_, err = m.Measure(NewContext(DefaultEngineConfig()), MeasureOptions{})
	require.NoError(t, err)
	_, err = Combine(a, m)
	assert.ErrorIs(t, err, ErrAlreadyMeasured)
	assert.Nil(t, a.Space(), "failed combine must not attach anything")
}

func TestProductSpace_HongOuMandel(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	a := NewFock(1, WithDimensions(3))
	b := NewFock(1, WithDimensions(3))
	ps, err := Combine(a, b)
	require.NoError(t, err)
	require.NoError(t, ps.Apply(ctx, ops.BeamSplitter{Theta: math.Pi / 4}, a, b))

	v, err := ps.Vector()
	require.NoError(t, err)
	for i := 0; i < 9; i++ {
		amp := cmplx.Abs(v.At(i, 0))
		switch i {
		case 2, 6:
			assert.InDelta(t, 1/math.Sqrt2, amp, 1e-9, "index %d", i)
		default:
			assert.InDelta(t, 0, amp, 1e-9, "index %d", i)
		}
	}
}

// The einsum path (targets out of slot order) and the padded Kronecker path
// (targets contiguous) must agree.
func TestProductSpace_ApplyPathsAgree(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	bs := ops.BeamSplitter{Theta: 0.4}
	build := func() (p, f, q *State) {
		return NewPolarization(PolarizationD), NewFock(1, WithDimensions(3)), NewQudit(2, 1)
	}

	p1, f1, q1 := build()
	viaEinsum, err := Combine(p1, f1, q1)
	require.NoError(t, err)
	require.NoError(t, viaEinsum.Apply(ctx, bs, q1, p1))

	p2, f2, q2 := build()
	viaKron, err := Combine(q2, p2, f2)
	require.NoError(t, err)
	require.NoError(t, viaKron.Apply(ctx, bs, q2, p2))
	require.NoError(t, viaKron.Reorder(p2, f2, q2))

	want, err := viaKron.Vector()
	require.NoError(t, err)
	got, err := viaEinsum.Vector()
	require.NoError(t, err)
	testutil.AssertMatrixClose(t, want, got, 1e-12)
	testutil.AssertNormalized(t, got, 1e-6)
}

func TestProductSpace_ApplyCommutesWithCombine(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())

	p1, f1 := NewPolarization(PolarizationH), NewFock(2, WithDimensions(3))
	require.NoError(t, p1.Apply(ctx, ops.Rotate(0.3)))
	require.NoError(t, f1.Apply(ctx, ops.Phase{Theta: 0.9}))
	before, err := Combine(p1, f1)
	require.NoError(t, err)

	p2, f2 := NewPolarization(PolarizationH), NewFock(2, WithDimensions(3))
	after, err := Combine(p2, f2)
	require.NoError(t, err)
	require.NoError(t, after.Apply(ctx, ops.Phase{Theta: 0.9}, f2))
	require.NoError(t, after.Apply(ctx, ops.Rotate(0.3), p2))

	want, err := before.Vector()
	require.NoError(t, err)
	got, err := after.Vector()
	require.NoError(t, err)
	testutil.AssertMatrixClose(t, want, got, 1e-12)
}

func TestProductSpace_MatrixApplyConservesTrace(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	a, b, c := NewQudit(2, 0), NewFock(1, WithDimensions(3)), NewPolarization(PolarizationA)
	ps, err := Combine(a, b, c)
	require.NoError(t, err)
	require.NoError(t, ps.Expand())
	assert.ErrorIs(t, ps.Expand(), ErrInvariantViolation)

	require.NoError(t, ps.Apply(ctx, ops.BeamSplitter{Theta: 0.7}, c, a))
	require.NoError(t, ps.Apply(ctx, ops.Hadamard(), c))
	rho, err := ps.DensityMatrix()
	require.NoError(t, err)
	testutil.AssertNormalized(t, rho, 1e-6)
	testutil.AssertMatrixClose(t, linalg.Dagger(rho), rho, 1e-12)

	require.NoError(t, ps.Contract(Vector, 1e-6))
	assert.Equal(t, Vector, ps.Level())
}

func TestProductSpace_ReorderIsIdempotent(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	a, b, c := NewQudit(2, 1), NewFock(1, WithDimensions(3)), NewPolarization(PolarizationD)
	ps, err := Combine(a, b, c)
	require.NoError(t, err)
	require.NoError(t, ps.Apply(ctx, ops.BeamSplitter{Theta: 0.3}, a, c))

	for _, level := range []ExpansionLevel{Vector, Matrix} {
		if level == Matrix {
			require.NoError(t, ps.Expand())
		}
		orig, err := ps.DensityMatrix()
		require.NoError(t, err)
		require.NoError(t, ps.Reorder(c, a, b))
		assert.Equal(t, []int{2, 2, 3}, ps.Dimensions())
		require.NoError(t, ps.Reorder(a, b, c))
		back, err := ps.DensityMatrix()
		require.NoError(t, err)
		testutil.AssertMatrixClose(t, orig, back, 1e-15)
	}
	assert.ErrorIs(t, ps.Reorder(a, b), ErrInvariantViolation)
}

func TestProductSpace_TraceOut(t *testing.T) {
	p := NewPolarization(PolarizationD)
	f := NewFock(1, WithDimensions(2))
	ps, err := Combine(p, f)
	require.NoError(t, err)

	for _, expand := range []bool{false, true} {
		if expand {
			require.NoError(t, ps.Expand())
		}
		rp, err := ps.TraceOut(p)
		require.NoError(t, err)
		testutil.AssertMatrixClose(t, linalg.Outer(PolarizationD.vector()), rp, 1e-12)
		rf, err := ps.TraceOut(f)
		require.NoError(t, err)
		testutil.AssertMatrixClose(t, linalg.Outer(linalg.Basis(2, 1)), rf, 1e-12)
		dm, err := f.DensityMatrix()
		require.NoError(t, err)
		testutil.AssertMatrixClose(t, rf, dm, 0)
	}
}

func TestProductSpace_ResizeSlot(t *testing.T) {
	a := NewFock(1, WithDimensions(2))
	b := NewPolarization(PolarizationV)
	ps, err := Combine(a, b)
	require.NoError(t, err)

	require.NoError(t, a.Resize(4))
	assert.Equal(t, []int{4, 2}, ps.Dimensions())
	v, err := ps.Vector()
	require.NoError(t, err)
	// |1⟩⊗|V⟩ in 4x2 is index 1*2 + 1.
	testutil.AssertMatrixClose(t, linalg.Basis(8, 3), v, 0)
}

func TestProductSpace_ApplyEstimatesFockDimensions(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	env := NewEnvelope()
	ps, err := env.Combine()
	require.NoError(t, err)
	require.NoError(t, ps.Apply(ctx, ops.Displace{Alpha: 2}, env.Fock()))

	est, err := EstimateDimensions(ctx.Config().Dimension, linalg.Basis(1, 0), ops.Displace{Alpha: 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{est.Dimensions, 2}, ps.Dimensions())

	v, err := ps.Vector()
	require.NoError(t, err)
	testutil.AssertNormalized(t, v, 1e-6)
	rho, err := env.Fock().DensityMatrix()
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-4), real(rho.At(0, 0)), 1e-3)
}

func TestProductSpace_MeasureDissolves(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	a := NewFock(1, WithDimensions(2))
	b := NewQudit(3, 2)
	c := NewPolarization(PolarizationV)
	ps, err := Combine(a, b, c)
	require.NoError(t, err)

	out, err := ps.Measure(ctx, MeasureOptions{}, a)
	require.NoError(t, err)
	assert.Equal(t, Outcomes{a: 1}, out)
	assert.True(t, a.Measured())
	assert.Equal(t, []*State{b, c}, ps.States())

	out, err = ps.Measure(ctx, MeasureOptions{}, b)
	require.NoError(t, err)
	assert.Equal(t, Outcomes{b: 2}, out)
	assert.True(t, ps.Released())
	assert.Nil(t, c.Space())
	assert.Equal(t, Vector, c.Level())
	v, err := c.Vector()
	require.NoError(t, err)
	testutil.AssertSameRay(t, linalg.Basis(2, 1), v, 1e-12)

	_, err = ps.Measure(ctx, MeasureOptions{}, c)
	assert.ErrorIs(t, err, ErrAlreadyMeasured, "dissolved space")
	_, err = a.Measure(ctx, MeasureOptions{})
	assert.ErrorIs(t, err, ErrAlreadyMeasured)
}

func TestProductSpace_UseAfterMeasurementReportsMeasured(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	a, b := NewQudit(2, 0), NewQudit(2, 1)
	ps, err := Combine(a, b)
	require.NoError(t, err)

	out, err := ps.Measure(ctx, MeasureOptions{}, a, b)
	require.NoError(t, err)
	assert.Equal(t, Outcomes{a: 0, b: 1}, out)
	assert.True(t, ps.Released())

	_, err = ps.Probabilities(a)
	assert.ErrorIs(t, err, ErrAlreadyMeasured)
	assert.ErrorIs(t, ps.Expand(), ErrAlreadyMeasured)
	_, err = ps.DensityMatrix()
	assert.ErrorIs(t, err, ErrAlreadyMeasured)
}

// ghz returns (|000⟩ + |111⟩)/√2 spread over three fresh qubits.
func ghz(t *testing.T, ctx *Context) (*ProductSpace, []*State) {
	t.Helper()
	q0, err := NewFromVector(KindQudit, linalg.Column(1, 1))
	require.NoError(t, err)
	qs := []*State{q0, NewQudit(2, 0), NewQudit(2, 0)}
	ps, err := Combine(qs...)
	require.NoError(t, err)

	// CNOT from q0 onto both partners.
	fanout := mat.NewCDense(8, 8, nil)
	for i := 0; i < 8; i++ {
		c := i >> 2
		j := c<<2 | ((i>>1)&1^c)<<1 | (i&1 ^ c)
		fanout.Set(j, i, 1)
	}
	require.NoError(t, ps.Apply(ctx, FixedOperator{M: fanout}, qs...))
	return ps, qs
}

func TestProductSpace_DestructiveMeasureAtMatrixLevel(t *testing.T) {
	seen := map[int]int{}
	for seed := int64(0); seed < 32; seed++ {
		ctx := NewContext(DefaultEngineConfig())
		ctx.SetSeed(seed)
		ctx.SetContractions(false)
		ps, qs := ghz(t, ctx)
		require.NoError(t, ps.Expand())
		require.Equal(t, Matrix, ps.Level())

		first, err := ps.Measure(ctx, MeasureOptions{}, qs[0])
		require.NoError(t, err)
		assert.Equal(t, Matrix, ps.Level())
		assert.Equal(t, []*State{qs[1], qs[2]}, ps.States())
		k := first[qs[0]]

		second, err := ps.Measure(ctx, MeasureOptions{}, qs[1])
		require.NoError(t, err)
		assert.Equal(t, k, second[qs[1]], "seed %d", seed)
		assert.True(t, ps.Released())
		assert.Equal(t, Matrix, qs[2].Level())

		rho, err := qs[2].DensityMatrix()
		require.NoError(t, err)
		testutil.AssertMatrixClose(t, linalg.Outer(linalg.Basis(2, k)), rho, 1e-9)
		third, err := qs[2].Measure(ctx, MeasureOptions{})
		require.NoError(t, err)
		assert.Equal(t, k, third[qs[2]], "seed %d", seed)
		seen[k]++
	}
	assert.Len(t, seen, 2, "both branches of the GHZ state occur")
}

func TestProductSpace_NonDestructiveMeasureCollapsesPartner(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	q1, err := NewFromVector(KindQudit, linalg.Column(1, 1))
	require.NoError(t, err)
	q2 := NewQudit(2, 0)
	ps, err := Combine(q1, q2)
	require.NoError(t, err)
	cnot := FixedOperator{M: mat.NewCDense(4, 4, []complex128{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0, 1,
		0, 0, 1, 0,
	})}
	require.NoError(t, ps.Apply(ctx, cnot, q1, q2))

	probs, err := ps.Probabilities(q1, q2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0, 0, 0.5}, probs, 1e-12)

	out, err := ps.Measure(ctx, MeasureOptions{NonDestructive: true}, q1)
	require.NoError(t, err)
	k := out[q1]
	assert.False(t, q1.Measured())
	assert.Equal(t, []*State{q1, q2}, ps.States())

	probs, err = ps.Probabilities(q2)
	require.NoError(t, err)
	want := []float64{0, 0}
	want[k] = 1
	assert.InDeltaSlice(t, want, probs, 1e-12)
}

func TestProductSpace_RejectsForeignAndMismatched(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	a, b := NewQudit(2, 0), NewQudit(3, 0)
	ps, err := Combine(a, b)
	require.NoError(t, err)
	before, err := ps.Vector()
	require.NoError(t, err)

	assert.ErrorIs(t, ps.Apply(ctx, ops.Hadamard(), NewQudit(2, 0)), ErrNotMember)
	assert.ErrorIs(t, ps.Apply(ctx, ops.Hadamard(), b), ErrDimensionMismatch)
	assert.ErrorIs(t, ps.Apply(ctx, ops.Hadamard(), a, a), ErrInvariantViolation)
	assert.ErrorIs(t, ps.ApplyKraus(ctx, []*mat.CDense{linalg.Identity(3)}, a), ErrDimensionMismatch)

	after, err := ps.Vector()
	require.NoError(t, err)
	testutil.AssertMatrixClose(t, before, after, 0)
}

func TestProductSpace_ApplyKrausDephases(t *testing.T) {
	ctx := NewContext(DefaultEngineConfig())
	ctx.SetContractions(true)
	p := NewPolarization(PolarizationD)
	f := NewFock(0, WithDimensions(2))
	ps, err := Combine(p, f)
	require.NoError(t, err)

	s := complex(math.Sqrt(0.5), 0)
	k0 := linalg.Identity(2)
	linalg.Scale(k0, s)
	k1 := mat.NewCDense(2, 2, []complex128{s, 0, 0, -s})
	require.NoError(t, ps.ApplyKraus(ctx, []*mat.CDense{k0, k1}, p))

	assert.Equal(t, Matrix, ps.Level())
	rp, err := ps.TraceOut(p)
	require.NoError(t, err)
	testutil.AssertMatrixClose(t, mat.NewCDense(2, 2, []complex128{0.5, 0, 0, 0.5}), rp, 1e-12)
}
