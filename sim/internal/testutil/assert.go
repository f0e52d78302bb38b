// Package testutil provides shared assertion helpers for the sim test
// packages.
package testutil

import (
	"math"
	"math/cmplx"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertMatrixClose fails unless want and got have the same shape and every
// element differs by at most tol in modulus.
func AssertMatrixClose(t *testing.T, want, got *mat.CDense, tol float64) {
	t.Helper()
	wr, wc := want.Dims()
	gr, gc := got.Dims()
	if wr != gr || wc != gc {
		t.Fatalf("shape: got %dx%d, want %dx%d", gr, gc, wr, wc)
	}
	for i := 0; i < wr; i++ {
		for j := 0; j < wc; j++ {
			if d := cmplx.Abs(want.At(i, j) - got.At(i, j)); d > tol {
				t.Errorf("element (%d,%d): got %v, want %v (diff=%v)", i, j, got.At(i, j), want.At(i, j), d)
			}
		}
	}
}

// AssertSameRay fails unless the column vectors want and got are equal up to
// a global phase.
func AssertSameRay(t *testing.T, want, got *mat.CDense, tol float64) {
	t.Helper()
	wr, _ := want.Dims()
	gr, _ := got.Dims()
	if wr != gr {
		t.Fatalf("length: got %d, want %d", gr, wr)
	}
	var overlap complex128
	var nw, ng float64
	for i := 0; i < wr; i++ {
		w, g := want.At(i, 0), got.At(i, 0)
		overlap += cmplx.Conj(w) * g
		nw += real(w)*real(w) + imag(w)*imag(w)
		ng += real(g)*real(g) + imag(g)*imag(g)
	}
	if d := 1 - cmplx.Abs(overlap)/math.Sqrt(nw*ng); d > tol {
		t.Errorf("vectors differ beyond a global phase: 1-|⟨want|got⟩| = %v", d)
	}
}

// AssertNormalized fails unless an n×1 vector has unit norm or an n×n matrix
// has unit trace.
func AssertNormalized(t *testing.T, m *mat.CDense, tol float64) {
	t.Helper()
	r, c := m.Dims()
	var got float64
	if c == 1 {
		for i := 0; i < r; i++ {
			a := m.At(i, 0)
			got += real(a)*real(a) + imag(a)*imag(a)
		}
	} else {
		for i := 0; i < r; i++ {
			got += real(m.At(i, i))
		}
	}
	if math.Abs(got-1) > tol {
		t.Errorf("normalisation: got %v, want 1", got)
	}
}
