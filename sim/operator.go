package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/photon-weave/photon-weave/sim/internal/linalg"
)

// OperatorProvider builds the matrix of an operator for the given target
// dimensions, in target order. The result must be square with side equal to
// the product of dims.
type OperatorProvider interface {
	Operator(dims ...int) (*mat.CDense, error)
}

// OperatorFunc adapts a function to OperatorProvider.
type OperatorFunc func(dims ...int) (*mat.CDense, error)

func (f OperatorFunc) Operator(dims ...int) (*mat.CDense, error) { return f(dims...) }

// FixedOperator is an operator with a fixed matrix, valid only for targets
// whose dimensions multiply to its side.
type FixedOperator struct {
	M *mat.CDense
}

func (f FixedOperator) Operator(dims ...int) (*mat.CDense, error) {
	if !linalg.IsSquare(f.M, product(dims)) {
		r, c := f.M.Dims()
		return nil, fmt.Errorf("%w: fixed operator is %dx%d, targets %v", ErrDimensionMismatch, r, c, dims)
	}
	return f.M, nil
}

// Renormalizer is implemented by non-unitary operators whose vector-level
// result must be renormalised.
type Renormalizer interface {
	Renormalize() bool
}

// CutoffHinter is implemented by Fock operators that can guess the
// truncation their output needs from the input photon number. Applying a
// CutoffHinter to a single Fock target triggers dimension estimation.
type CutoffHinter interface {
	InitialCutoff(numQuanta int) int
}

func renormalizes(op OperatorProvider) bool {
	r, ok := op.(Renormalizer)
	return ok && r.Renormalize()
}

// buildOperator asks op for its matrix and checks the shape.
func buildOperator(op OperatorProvider, dims []int) (*mat.CDense, error) {
	m, err := op.Operator(dims...)
	if err != nil {
		return nil, fmt.Errorf("%w: building operator for dims %v: %w", ErrDimensionMismatch, dims, err)
	}
	if !linalg.IsSquare(m, product(dims)) {
		r, c := m.Dims()
		return nil, fmt.Errorf("%w: operator is %dx%d, targets span %d", ErrDimensionMismatch, r, c, product(dims))
	}
	return m, nil
}

// checkKraus validates that every operator is n×n and that Σ K†K ≈ I.
func checkKraus(ops []*mat.CDense, n int, tol float64) error {
	if len(ops) == 0 {
		return fmt.Errorf("%w: empty operator set", ErrInvalidKrausSet)
	}
	sum := linalg.Zeros(n, n)
	for i, k := range ops {
		if !linalg.IsSquare(k, n) {
			r, c := k.Dims()
			return fmt.Errorf("%w: operator %d is %dx%d, targets span %d", ErrDimensionMismatch, i, r, c, n)
		}
		sum = linalg.Add(sum, linalg.HMul(k, k))
	}
	if !linalg.IsIdentity(sum, tol) {
		return fmt.Errorf("%w: Σ K†K deviates from identity", ErrInvalidKrausSet)
	}
	return nil
}

// checkPOVM validates that every element is n×n and that Σ E ≈ I.
func checkPOVM(ops []*mat.CDense, n int, tol float64) error {
	if len(ops) == 0 {
		return fmt.Errorf("%w: empty POVM", ErrInvalidKrausSet)
	}
	sum := linalg.Zeros(n, n)
	for i, e := range ops {
		if !linalg.IsSquare(e, n) {
			r, c := e.Dims()
			return fmt.Errorf("%w: POVM element %d is %dx%d, targets span %d", ErrDimensionMismatch, i, r, c, n)
		}
		sum = linalg.Add(sum, e)
	}
	if !linalg.IsIdentity(sum, tol) {
		return fmt.Errorf("%w: POVM elements do not sum to identity", ErrInvalidKrausSet)
	}
	return nil
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
