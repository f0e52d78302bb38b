package ops

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/photon-weave/photon-weave/sim/internal/linalg"
)

// BeamSplitter is the two-mode non-polarizing beam splitter
// exp(iθ(a†b + ab†)). θ = π/4 is a 50/50 splitter.
type BeamSplitter struct {
	Theta float64
}

func (b BeamSplitter) Operator(dims ...int) (*mat.CDense, error) {
	if len(dims) != 2 || dims[0] < 1 || dims[1] < 1 {
		return nil, fmt.Errorf("%w: beam splitter acts on two modes, got dims %v", ErrArity, dims)
	}
	a1, a1d := AnnihilationMatrix(dims[0]), CreationMatrix(dims[0])
	a2, a2d := AnnihilationMatrix(dims[1]), CreationMatrix(dims[1])
	h := linalg.Add(linalg.Kron(a1d, a2), linalg.Kron(a1, a2d))
	linalg.Scale(h, complex(b.Theta, 0))
	return linalg.ExpI(h)
}

// Matrix wraps a precomputed square matrix. It only answers for the exact
// dimensions it was built for.
type Matrix struct {
	M *mat.CDense
}

func (m Matrix) Operator(dims ...int) (*mat.CDense, error) {
	n := 1
	for _, d := range dims {
		n *= d
	}
	if len(dims) == 0 || !linalg.IsSquare(m.M, n) {
		r, c := m.M.Dims()
		return nil, fmt.Errorf("%w: %dx%d matrix cannot act on dims %v", ErrArity, r, c, dims)
	}
	return linalg.Clone(m.M), nil
}
