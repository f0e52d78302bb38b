package sim

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/photon-weave/photon-weave/sim/internal/linalg"
)

// ExpansionLevel is the representation a state or product space is held in.
// Levels are totally ordered: Label < Vector < Matrix.
type ExpansionLevel int

const (
	// Label is a single basis index.
	Label ExpansionLevel = iota
	// Vector is a normalised n×1 amplitude column.
	Vector
	// Matrix is a unit-trace Hermitian n×n density matrix.
	Matrix
)

func (l ExpansionLevel) String() string {
	switch l {
	case Label:
		return "label"
	case Vector:
		return "vector"
	case Matrix:
		return "matrix"
	default:
		return fmt.Sprintf("ExpansionLevel(%d)", int(l))
	}
}

// ParseExpansionLevel converts a level name back to its value.
func ParseExpansionLevel(s string) (ExpansionLevel, error) {
	switch s {
	case "label":
		return Label, nil
	case "vector":
		return Vector, nil
	case "matrix":
		return Matrix, nil
	}
	return 0, fmt.Errorf("unknown expansion level %q", s)
}

// representation is the payload of a standalone state. Exactly one of the
// concrete types is held at a time.
type representation interface {
	level() ExpansionLevel
}

type labelRep struct{ index int }
type vectorRep struct{ vec *mat.CDense }
type matrixRep struct{ rho *mat.CDense }

func (labelRep) level() ExpansionLevel  { return Label }
func (vectorRep) level() ExpansionLevel { return Vector }
func (matrixRep) level() ExpansionLevel { return Matrix }

// purify attempts Matrix -> Vector. ok is false when ρ is mixed.
func purify(rho *mat.CDense, tol float64) (vec *mat.CDense, ok bool, err error) {
	purity := real(linalg.Trace(linalg.Mul(rho, rho)))
	if math.Abs(purity-1) > tol {
		return nil, false, nil
	}
	_, v, err := linalg.LeadingEigen(linalg.Hermitize(rho))
	if err != nil {
		return nil, false, fmt.Errorf("%w: contracting density matrix: %w", ErrInvariantViolation, err)
	}
	fixGlobalPhase(v, tol)
	return v, true, nil
}

// fixGlobalPhase rotates v so that its first non-negligible amplitude is real
// and positive.
func fixGlobalPhase(v *mat.CDense, tol float64) {
	r, _ := v.Dims()
	for i := 0; i < r; i++ {
		a := v.At(i, 0)
		if cmplx.Abs(a) > tol {
			linalg.Scale(v, cmplx.Conj(a)/complex(cmplx.Abs(a), 0))
			return
		}
	}
}

// basisIndex attempts Vector -> Label. ok is true only when exactly one
// amplitude equals 1 within tol.
func basisIndex(v *mat.CDense, tol float64) (int, bool) {
	r, _ := v.Dims()
	index, count := -1, 0
	for i := 0; i < r; i++ {
		if cmplx.Abs(v.At(i, 0)-1) <= tol {
			index = i
			count++
		}
	}
	return index, count == 1
}

// normalizeVector scales v to unit norm. A zero vector cannot be a state.
func normalizeVector(v *mat.CDense) error {
	n := linalg.Norm(v)
	if n == 0 {
		return fmt.Errorf("%w: state vector vanished", ErrInvariantViolation)
	}
	linalg.Scale(v, complex(1/n, 0))
	return nil
}

// normalizeTrace scales ρ to unit trace.
func normalizeTrace(rho *mat.CDense) error {
	tr := real(linalg.Trace(rho))
	if tr <= 0 {
		return fmt.Errorf("%w: density matrix has trace %g", ErrInvariantViolation, tr)
	}
	linalg.Scale(rho, complex(1/tr, 0))
	return nil
}

// meanQuanta returns ⌈⟨n⟩⌉ of a Fock vector or density matrix.
func meanQuanta(m *mat.CDense) int {
	r, c := m.Dims()
	var mean float64
	for k := 0; k < r; k++ {
		var p float64
		if c == 1 {
			a := m.At(k, 0)
			p = real(a)*real(a) + imag(a)*imag(a)
		} else {
			p = real(m.At(k, k))
		}
		mean += float64(k) * p
	}
	return int(math.Ceil(mean - 1e-9))
}
