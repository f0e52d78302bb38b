package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/photon-weave/photon-weave/sim/internal/linalg"
)

// Outcomes maps each measured state to its sampled basis index (or POVM
// element index).
type Outcomes map[*State]int

func (o Outcomes) merge(other Outcomes) {
	for s, k := range other {
		o[s] = k
	}
}

// MeasureOptions tune a measurement.
type MeasureOptions struct {
	// NonDestructive collapses the measured states instead of consuming them.
	NonDestructive bool
	// Partial measures only the named states. Without it the envelope
	// partner of every measured state is measured too.
	Partial bool
}

// sample draws an index from probs, which need not be normalised, using a
// fresh key from ctx. It returns the index and its normalised probability.
func sample(ctx *Context, probs []float64) (int, float64, error) {
	total := floats.Sum(probs)
	if total <= 0 {
		return 0, 0, fmt.Errorf("%w: outcome distribution has no mass", ErrInvariantViolation)
	}
	weights := append([]float64(nil), probs...)
	floats.Scale(1/total, weights)
	k := int(distuv.NewCategorical(weights, ctx.NextKey()).Rand())
	return k, weights[k], nil
}

func (s *State) markMeasured() {
	s.measured = true
	s.rep = nil
	s.space = nil
}

// withPartners appends the unmeasured envelope partners of states unless the
// measurement is partial.
func withPartners(states []*State, opts MeasureOptions) []*State {
	if opts.Partial {
		return states
	}
	out := append([]*State(nil), states...)
	for _, s := range states {
		if s.envelope == nil {
			continue
		}
		if p := s.envelope.partner(s); p != nil && !p.measured && !contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// measureStates measures states projectively, grouping the ones that share a
// product space into one joint measurement.
func measureStates(ctx *Context, opts MeasureOptions, states ...*State) (Outcomes, error) {
	var spaces []*ProductSpace
	groups := make(map[*ProductSpace][]*State)
	var standalone []*State
	for _, s := range states {
		if s.measured {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
		}
		if s.space == nil {
			standalone = append(standalone, s)
			continue
		}
		if _, ok := groups[s.space]; !ok {
			spaces = append(spaces, s.space)
		}
		groups[s.space] = append(groups[s.space], s)
	}

	out := make(Outcomes, len(states))
	for _, s := range standalone {
		k, err := s.measureStandalone(ctx, opts)
		if err != nil {
			return nil, err
		}
		out[s] = k
	}
	for _, ps := range spaces {
		o, err := ps.Measure(ctx, opts, groups[ps]...)
		if err != nil {
			return nil, err
		}
		out.merge(o)
	}
	return out, nil
}

func (s *State) probabilities() ([]float64, error) {
	switch r := s.rep.(type) {
	case labelRep:
		return vectorProbabilities(s.basisVector(r.index)), nil
	case vectorRep:
		return vectorProbabilities(r.vec), nil
	case matrixRep:
		n, _ := r.rho.Dims()
		probs := make([]float64, n)
		for i := range probs {
			probs[i] = max(real(r.rho.At(i, i)), 0)
		}
		return probs, nil
	}
	return nil, fmt.Errorf("%w: %s has no representation", ErrInvariantViolation, s)
}

func vectorProbabilities(v *mat.CDense) []float64 {
	n, _ := v.Dims()
	probs := make([]float64, n)
	for i := range probs {
		a := v.At(i, 0)
		probs[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	return probs
}

func (s *State) measureStandalone(ctx *Context, opts MeasureOptions) (int, error) {
	probs, err := s.probabilities()
	if err != nil {
		return 0, err
	}
	k, _, err := sample(ctx, probs)
	if err != nil {
		return 0, err
	}
	if opts.NonDestructive {
		s.dims = s.Dimensions()
		s.rep = labelRep{index: k}
	} else {
		s.markMeasured()
	}
	logrus.Debugf("measured %s -> %d", s, k)
	return k, nil
}

// Measure performs a projective measurement in the computational basis.
// Unless opts.Partial is set the envelope partner is measured as well.
func (s *State) Measure(ctx *Context, opts MeasureOptions) (Outcomes, error) {
	if s.measured {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
	}
	return measureStates(ctx, opts, withPartners([]*State{s}, opts)...)
}

// MeasurePOVM samples one of the POVM elements ops. The returned outcome for
// s is the element index. Unless opts.Partial is set the envelope partner is
// then measured projectively.
func (s *State) MeasurePOVM(ctx *Context, ops []*mat.CDense, opts MeasureOptions) (Outcomes, error) {
	if s.measured {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
	}
	var k int
	var err error
	if s.space != nil {
		k, err = s.space.MeasurePOVM(ctx, ops, opts, s)
	} else {
		k, err = s.measurePOVMStandalone(ctx, ops, opts)
	}
	if err != nil {
		return nil, err
	}
	out := Outcomes{s: k}
	if partners := withPartners([]*State{s}, opts)[1:]; len(partners) > 0 {
		o, err := measureStates(ctx, MeasureOptions{NonDestructive: opts.NonDestructive, Partial: true}, partners...)
		if err != nil {
			return nil, err
		}
		out.merge(o)
	}
	return out, nil
}

func (s *State) measurePOVMStandalone(ctx *Context, ops []*mat.CDense, opts MeasureOptions) (int, error) {
	n := s.Dimensions()
	if err := checkPOVM(ops, n, ctx.Tolerance()); err != nil {
		return 0, err
	}
	rho, err := s.DensityMatrix()
	if err != nil {
		return 0, err
	}
	probs := make([]float64, len(ops))
	for i, e := range ops {
		probs[i] = max(real(linalg.Trace(linalg.Mul(e, rho))), 0)
	}
	k, p, err := sample(ctx, probs)
	if err != nil {
		return 0, err
	}
	if p < ctx.Tolerance() {
		return 0, fmt.Errorf("%w: POVM outcome %d has probability %g", ErrInvariantViolation, k, p)
	}
	logrus.Debugf("POVM outcome %d on %s", k, s)
	if !opts.NonDestructive {
		s.markMeasured()
		return k, nil
	}
	collapsed := linalg.Sandwich(ops[k], rho)
	if err := normalizeTrace(collapsed); err != nil {
		return 0, err
	}
	s.dims = n
	s.rep = matrixRep{rho: collapsed}
	if ctx.Contractions() {
		return k, s.Contract(Label, ctx.Tolerance())
	}
	return k, nil
}
