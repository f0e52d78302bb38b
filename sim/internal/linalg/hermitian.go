package linalg

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNoConvergence is returned when the eigensolver fails.
var ErrNoConvergence = errors.New("linalg: eigendecomposition did not converge")

// Hermitize returns (a + a†)/2.
func Hermitize(a *mat.CDense) *mat.CDense {
	h := Add(a, Dagger(a))
	Scale(h, 0.5)
	return h
}

// embed builds the 2n×2n real symmetric matrix [[A, -B], [B, A]] of the
// Hermitian part of h = A + iB.
func embed(h *mat.CDense) *mat.SymDense {
	n, _ := h.Dims()
	herm := Hermitize(h)
	sym := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := herm.At(i, j)
			a, b := real(v), imag(v)
			sym.SetSym(i, j, a)
			sym.SetSym(n+i, n+j, a)
			// lower-left block B, upper-right -B
			sym.SetSym(n+i, j, b)
			if i != j {
				sym.SetSym(i, n+j, -b)
			}
		}
	}
	return sym
}

type spectrum struct {
	n       int
	values  []float64
	vectors *mat.Dense
}

func factorize(h *mat.CDense) (spectrum, error) {
	n, c := h.Dims()
	if n != c {
		return spectrum{}, errors.New("linalg: eigendecomposition of non-square matrix")
	}
	var es mat.EigenSym
	if ok := es.Factorize(embed(h), true); !ok {
		return spectrum{}, ErrNoConvergence
	}
	var q mat.Dense
	es.VectorsTo(&q)
	return spectrum{n: n, values: es.Values(nil), vectors: &q}, nil
}

// apply computes f(H) for a real function f from the embedded spectrum. Every
// eigenvalue of H appears twice in the embedding, so the result is exact
// even for degenerate spectra.
func (s spectrum) apply(f func(float64) float64) *mat.CDense {
	n := s.n
	out := mat.NewCDense(n, n, nil)
	for k, lambda := range s.values {
		w := f(lambda)
		if w == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			ui := s.vectors.At(i, k)
			ui2 := s.vectors.At(n+i, k)
			for j := 0; j < n; j++ {
				uj := s.vectors.At(j, k)
				// F[0:n,0:n] is Re f(H), F[n:2n,0:n] is Im f(H).
				out.Set(i, j, out.At(i, j)+complex(w*ui*uj, w*ui2*uj))
			}
		}
	}
	return out
}

// ExpI returns exp(iH) for a Hermitian matrix H.
func ExpI(h *mat.CDense) (*mat.CDense, error) {
	s, err := factorize(h)
	if err != nil {
		return nil, err
	}
	cos := s.apply(math.Cos)
	sin := s.apply(math.Sin)
	Scale(sin, 1i)
	return Add(cos, sin), nil
}

// ExpAntiHermitian returns exp(G) for an anti-Hermitian generator G, using
// G = iH with H = -iG Hermitian.
func ExpAntiHermitian(g *mat.CDense) (*mat.CDense, error) {
	h := Clone(g)
	Scale(h, -1i)
	return ExpI(h)
}

// LeadingEigen returns the largest eigenvalue of a Hermitian matrix together
// with a unit eigenvector as an n×1 column.
func LeadingEigen(h *mat.CDense) (float64, *mat.CDense, error) {
	s, err := factorize(h)
	if err != nil {
		return 0, nil, err
	}
	// Values are ascending; the last column of the embedding spans the
	// eigenspace of the largest eigenvalue.
	k := len(s.values) - 1
	n := s.n
	v := mat.NewCDense(n, 1, nil)
	var norm float64
	for i := 0; i < n; i++ {
		x, y := s.vectors.At(i, k), s.vectors.At(n+i, k)
		v.Set(i, 0, complex(x, y))
		norm += x*x + y*y
	}
	Scale(v, complex(1/math.Sqrt(norm), 0))
	return s.values[k], v, nil
}
