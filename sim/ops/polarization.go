package ops

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

var invSqrt2 = complex(1/math.Sqrt2, 0)

func qubit(a, b, c, d complex128) Matrix {
	return Matrix{M: mat.NewCDense(2, 2, []complex128{a, b, c, d})}
}

// Hadamard maps H to D and V to A.
func Hadamard() Matrix { return qubit(invSqrt2, invSqrt2, invSqrt2, -invSqrt2) }

// PauliX swaps H and V.
func PauliX() Matrix { return qubit(0, 1, 1, 0) }

// PauliY is the Pauli Y gate.
func PauliY() Matrix { return qubit(0, -1i, 1i, 0) }

// PauliZ flips the sign of V.
func PauliZ() Matrix { return qubit(1, 0, 0, -1) }

// Rotate rotates the polarization plane by theta.
func Rotate(theta float64) Matrix {
	c, s := complex(math.Cos(theta), 0), complex(math.Sin(theta), 0)
	return qubit(c, -s, s, c)
}

// Retard delays the V component by phi (a wave plate with its fast axis
// along H).
func Retard(phi float64) Matrix {
	return qubit(1, 0, 0, cmplx.Exp(complex(0, phi)))
}
