// Package ops provides reference operator kernels for Fock modes and
// polarization qubits. Every kernel is a Provider: a pure function from the
// target dimensions to a square matrix of exactly that size. The engine in
// package sim consumes them through its OperatorProvider interface and never
// depends on this package.
package ops

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/photon-weave/photon-weave/sim/internal/linalg"
)

// Provider builds an operator matrix for the given target dimensions.
type Provider interface {
	Operator(dims ...int) (*mat.CDense, error)
}

// ErrArity is returned when a kernel is asked for the wrong number of
// target dimensions or a non-positive dimension.
var ErrArity = errors.New("ops: wrong target dimensions")

func singleDim(name string, dims []int) (int, error) {
	if len(dims) != 1 || dims[0] < 1 {
		return 0, fmt.Errorf("%w: %s acts on one mode, got dims %v", ErrArity, name, dims)
	}
	return dims[0], nil
}

// AnnihilationMatrix returns the truncated lowering operator a of size n.
func AnnihilationMatrix(n int) *mat.CDense {
	m := linalg.Zeros(n, n)
	for k := 1; k < n; k++ {
		m.Set(k-1, k, complex(math.Sqrt(float64(k)), 0))
	}
	return m
}

// CreationMatrix returns the truncated raising operator a† of size n.
func CreationMatrix(n int) *mat.CDense {
	return linalg.Dagger(AnnihilationMatrix(n))
}

// NumberMatrix returns diag(0, 1, ..., n-1).
func NumberMatrix(n int) *mat.CDense {
	m := linalg.Zeros(n, n)
	for k := 0; k < n; k++ {
		m.Set(k, k, complex(float64(k), 0))
	}
	return m
}

// Identity is the identity on any number of targets.
type Identity struct{}

func (Identity) Operator(dims ...int) (*mat.CDense, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: identity needs at least one target", ErrArity)
	}
	n := 1
	for _, d := range dims {
		if d < 1 {
			return nil, fmt.Errorf("%w: dimension %d", ErrArity, d)
		}
		n *= d
	}
	return linalg.Identity(n), nil
}

// Creation applies a†. It is not unitary, so the result is renormalised.
type Creation struct{}

func (Creation) Operator(dims ...int) (*mat.CDense, error) {
	n, err := singleDim("creation", dims)
	if err != nil {
		return nil, err
	}
	return CreationMatrix(n), nil
}

func (Creation) Renormalize() bool { return true }

// InitialCutoff leaves room for the extra quantum.
func (Creation) InitialCutoff(numQuanta int) int { return numQuanta + 2 }

// Annihilation applies a. It is not unitary, so the result is renormalised.
type Annihilation struct{}

func (Annihilation) Operator(dims ...int) (*mat.CDense, error) {
	n, err := singleDim("annihilation", dims)
	if err != nil {
		return nil, err
	}
	return AnnihilationMatrix(n), nil
}

func (Annihilation) Renormalize() bool { return true }

// Phase applies exp(iθn).
type Phase struct {
	Theta float64
}

func (p Phase) Operator(dims ...int) (*mat.CDense, error) {
	n, err := singleDim("phase", dims)
	if err != nil {
		return nil, err
	}
	m := linalg.Zeros(n, n)
	for k := 0; k < n; k++ {
		m.Set(k, k, cmplx.Exp(complex(0, p.Theta*float64(k))))
	}
	return m, nil
}

// Displace is the displacement D(α) = exp(αa† − α*a).
type Displace struct {
	Alpha complex128
}

func (d Displace) Operator(dims ...int) (*mat.CDense, error) {
	n, err := singleDim("displace", dims)
	if err != nil {
		return nil, err
	}
	up := CreationMatrix(n)
	linalg.Scale(up, d.Alpha)
	down := AnnihilationMatrix(n)
	linalg.Scale(down, -cmplx.Conj(d.Alpha))
	return linalg.ExpAntiHermitian(linalg.Add(up, down))
}

// InitialCutoff is n + 3|α|².
func (d Displace) InitialCutoff(numQuanta int) int {
	a := cmplx.Abs(d.Alpha)
	return numQuanta + int(math.Ceil(3*a*a))
}

// Squeeze is the single-mode squeezer S(ζ) = exp(½(ζ*a² − ζa†²)).
type Squeeze struct {
	Zeta complex128
}

func (s Squeeze) Operator(dims ...int) (*mat.CDense, error) {
	n, err := singleDim("squeeze", dims)
	if err != nil {
		return nil, err
	}
	a := AnnihilationMatrix(n)
	ad := CreationMatrix(n)
	down := linalg.Mul(a, a)
	linalg.Scale(down, 0.5*cmplx.Conj(s.Zeta))
	up := linalg.Mul(ad, ad)
	linalg.Scale(up, -0.5*s.Zeta)
	return linalg.ExpAntiHermitian(linalg.Add(down, up))
}

// InitialCutoff uses the mean photon number of a squeezed Fock state,
// (2n+1)sinh²r + n, with three times that as headroom.
func (s Squeeze) InitialCutoff(numQuanta int) int {
	r := cmplx.Abs(s.Zeta)
	n := float64(numQuanta)
	mean := int(math.Ceil((2*n+1)*math.Pow(math.Sinh(r), 2) + n))
	return numQuanta + 3*mean
}
