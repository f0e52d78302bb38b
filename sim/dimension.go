package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/photon-weave/photon-weave/sim/internal/linalg"
)

// Estimate is the outcome of dimension estimation.
type Estimate struct {
	Dimensions int // truncation to resize the target to
	Trial      int // trial dimension at which the evolved state was checked
	Iterations int // growth steps taken after the initial trial
}

// EstimateDimensions finds a Fock truncation that keeps at least
// cfg.Threshold of the probability mass of op applied to state.
//
// state is either an n×1 vector or an n×n density matrix. The first trial
// dimension is n, raised to op's InitialCutoff(numQuanta) when op is a
// CutoffHinter. A trial is rejected, and the dimension grown by
// cfg.GrowthStep, when the evolved state still carries occupation
// probability above (1-Threshold)·1e-3 at its top level, for vectors and
// density matrices alike, or never accumulates Threshold. An
// accepted trial returns the first index i reaching Threshold plus
// cfg.SafetyMargin.
func EstimateDimensions(cfg DimensionConfig, state *mat.CDense, op OperatorProvider, numQuanta int) (Estimate, error) {
	if err := cfg.Validate(); err != nil {
		return Estimate{}, err
	}
	r, _ := state.Dims()
	dims := r
	if h, ok := op.(CutoffHinter); ok {
		if cut := h.InitialCutoff(numQuanta); cut > dims {
			dims = cut
		}
	}
	edge := (1 - cfg.Threshold) * 1e-3

	for iterations := 0; ; iterations++ {
		if cfg.MaxDimensions > 0 && dims > cfg.MaxDimensions {
			return Estimate{}, fmt.Errorf("%w: trial dimension %d exceeds %d", ErrDimensionLimit, dims, cfg.MaxDimensions)
		}
		probs, err := trialProbabilities(state, op, dims)
		if err != nil {
			return Estimate{}, err
		}
		if probs[dims-1] <= edge {
			var cum float64
			for i, p := range probs {
				cum += p
				if cum >= cfg.Threshold {
					est := Estimate{Dimensions: i + cfg.SafetyMargin, Trial: dims, Iterations: iterations}
					logrus.Debugf("dimension estimate %+v", est)
					return est, nil
				}
			}
		}
		dims += cfg.GrowthStep
	}
}

// trialProbabilities pads state to dims, applies op and returns the
// normalised occupation probabilities.
func trialProbabilities(state *mat.CDense, op OperatorProvider, dims int) ([]float64, error) {
	u, err := buildOperator(op, []int{dims})
	if err != nil {
		return nil, err
	}
	probs := make([]float64, dims)
	if _, c := state.Dims(); c == 1 {
		out := linalg.Mul(u, linalg.ResizeVector(state, dims))
		for i := range probs {
			a := out.At(i, 0)
			probs[i] = real(a)*real(a) + imag(a)*imag(a)
		}
	} else {
		out := linalg.Sandwich(u, linalg.ResizeMatrix(state, dims))
		for i := range probs {
			probs[i] = max(real(out.At(i, i)), 0)
		}
	}
	total := floats.Sum(probs)
	if total <= 0 {
		return nil, fmt.Errorf("%w: operator annihilates the state", ErrInvariantViolation)
	}
	floats.Scale(1/total, probs)
	return probs, nil
}

func estimateFor(ctx *Context, cur *mat.CDense, op OperatorProvider) (Estimate, error) {
	return EstimateDimensions(ctx.Config().Dimension, cur, op, meanQuanta(cur))
}
