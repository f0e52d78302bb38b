// Package linalg provides the dense complex linear algebra the engine needs on
// top of gonum's mat.CDense storage. gonum keeps complex matrices as storage
// only, so products go through blas/cblas128 and Hermitian eigenproblems are
// solved on the real symmetric embedding
//
//	H = A + iB  ->  [[A, -B], [B, A]]
//
// with mat.EigenSym.
package linalg

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// Zeros returns an r×c zero matrix.
func Zeros(r, c int) *mat.CDense {
	return mat.NewCDense(r, c, nil)
}

// Identity returns the n×n identity.
func Identity(n int) *mat.CDense {
	m := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Basis returns the n×1 column vector with a 1 at index k.
func Basis(n, k int) *mat.CDense {
	if k < 0 || k >= n {
		panic(fmt.Sprintf("linalg: basis index %d out of range for dimension %d", k, n))
	}
	v := mat.NewCDense(n, 1, nil)
	v.Set(k, 0, 1)
	return v
}

// Column builds an n×1 column vector from amplitudes.
func Column(amps ...complex128) *mat.CDense {
	data := make([]complex128, len(amps))
	copy(data, amps)
	return mat.NewCDense(len(amps), 1, data)
}

// Clone returns a deep copy with a contiguous backing slice.
func Clone(a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(r, c, nil)
	out.Copy(a)
	return out
}

// Data returns the row-major backing slice of a. Matrices built by this
// package are always contiguous; anything else is copied first.
func Data(a *mat.CDense) []complex128 {
	raw := a.RawCMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	return Clone(a).RawCMatrix().Data
}

// Mul returns a·b.
func Mul(a, b *mat.CDense) *mat.CDense {
	return gemm(blas.NoTrans, blas.NoTrans, a, b)
}

// MulH returns a·b†.
func MulH(a, b *mat.CDense) *mat.CDense {
	return gemm(blas.NoTrans, blas.ConjTrans, a, b)
}

// HMul returns a†·b.
func HMul(a, b *mat.CDense) *mat.CDense {
	return gemm(blas.ConjTrans, blas.NoTrans, a, b)
}

// Sandwich returns u·ρ·u†.
func Sandwich(u, rho *mat.CDense) *mat.CDense {
	return MulH(Mul(u, rho), u)
}

func gemm(tA, tB blas.Transpose, a, b *mat.CDense) *mat.CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	m, k := ar, ac
	if tA != blas.NoTrans {
		m, k = ac, ar
	}
	k2, n := br, bc
	if tB != blas.NoTrans {
		k2, n = bc, br
	}
	if k != k2 {
		panic(fmt.Sprintf("linalg: shape mismatch %dx%d · %dx%d", m, k, k2, n))
	}
	c := mat.NewCDense(m, n, nil)
	cblas128.Gemm(tA, tB, 1, a.RawCMatrix(), b.RawCMatrix(), 0, c.RawCMatrix())
	return c
}

// Dagger returns the conjugate transpose of a.
func Dagger(a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(c, r, nil)
	out.Copy(a.H())
	return out
}

// Conj returns the element-wise conjugate of a.
func Conj(a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(r, c, nil)
	out.Conj(a)
	return out
}

// Kron returns the Kronecker product a ⊗ b.
func Kron(a, b *mat.CDense) *mat.CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	out := mat.NewCDense(ar*br, ac*bc, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			aij := a.At(i, j)
			if aij == 0 {
				continue
			}
			for k := 0; k < br; k++ {
				for l := 0; l < bc; l++ {
					out.Set(i*br+k, j*bc+l, aij*b.At(k, l))
				}
			}
		}
	}
	return out
}

// KronAll folds Kron over ms left to right.
func KronAll(ms ...*mat.CDense) *mat.CDense {
	if len(ms) == 0 {
		panic("linalg: KronAll of nothing")
	}
	out := ms[0]
	for _, m := range ms[1:] {
		out = Kron(out, m)
	}
	return out
}

// Outer returns v·v† for a column vector v.
func Outer(v *mat.CDense) *mat.CDense {
	return MulH(v, v)
}

// Trace returns the trace of a square matrix.
func Trace(a *mat.CDense) complex128 {
	r, c := a.Dims()
	if r != c {
		panic(fmt.Sprintf("linalg: trace of non-square %dx%d", r, c))
	}
	var t complex128
	for i := 0; i < r; i++ {
		t += a.At(i, i)
	}
	return t
}

// Norm returns the Frobenius norm, which is the 2-norm for column vectors.
func Norm(a *mat.CDense) float64 {
	var s float64
	for _, v := range Data(a) {
		s += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(s)
}

// Scale multiplies every element of a by f in place.
func Scale(a *mat.CDense, f complex128) {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a.Set(i, j, a.At(i, j)*f)
		}
	}
}

// Add returns a + b.
func Add(a, b *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	br, bc := b.Dims()
	if r != br || c != bc {
		panic(fmt.Sprintf("linalg: add %dx%d + %dx%d", r, c, br, bc))
	}
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, a.At(i, j)+b.At(i, j))
		}
	}
	return out
}

// EqualApprox reports whether a and b have equal shapes and every pair of
// elements differs by at most tol in modulus.
func EqualApprox(a, b *mat.CDense, tol float64) bool {
	r, c := a.Dims()
	br, bc := b.Dims()
	if r != br || c != bc {
		return false
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if cmplx.Abs(a.At(i, j)-b.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}

// IsIdentity reports whether a is within tol of the identity.
func IsIdentity(a *mat.CDense, tol float64) bool {
	r, c := a.Dims()
	if r != c {
		return false
	}
	return EqualApprox(a, Identity(r), tol)
}

// IsSquare reports whether a is n×n.
func IsSquare(a *mat.CDense, n int) bool {
	r, c := a.Dims()
	return r == n && c == n
}

// ResizeVector returns a copy of the n×1 column v padded with zeros or
// truncated to length n.
func ResizeVector(v *mat.CDense, n int) *mat.CDense {
	r, _ := v.Dims()
	out := mat.NewCDense(n, 1, nil)
	for i := 0; i < min(r, n); i++ {
		out.Set(i, 0, v.At(i, 0))
	}
	return out
}

// ResizeMatrix returns a copy of the square matrix a padded with zeros or
// truncated to n×n. The top-left block is preserved.
func ResizeMatrix(a *mat.CDense, n int) *mat.CDense {
	r, _ := a.Dims()
	out := mat.NewCDense(n, n, nil)
	for i := 0; i < min(r, n); i++ {
		for j := 0; j < min(r, n); j++ {
			out.Set(i, j, a.At(i, j))
		}
	}
	return out
}
