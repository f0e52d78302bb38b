package scenario

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/combin"
)

// dephasing returns the Kraus set of a dephasing channel of strength p on an
// n-level system: √(1-p)·I plus √p·|k⟩⟨k| for every k.
func dephasing(p float64, n int) []*mat.CDense {
	out := make([]*mat.CDense, 0, n+1)
	k0 := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		k0.Set(i, i, complex(math.Sqrt(1-p), 0))
	}
	out = append(out, k0)
	for k := 0; k < n; k++ {
		kk := mat.NewCDense(n, n, nil)
		kk.Set(k, k, complex(math.Sqrt(p), 0))
		out = append(out, kk)
	}
	return out
}

// damping returns the Kraus set of loss with probability gamma per quantum:
// K_l = Σ_m √C(m,l) (1-γ)^((m-l)/2) γ^(l/2) |m-l⟩⟨m|.
func damping(gamma float64, n int) []*mat.CDense {
	out := make([]*mat.CDense, 0, n)
	for l := 0; l < n; l++ {
		kl := mat.NewCDense(n, n, nil)
		for m := l; m < n; m++ {
			amp := math.Sqrt(float64(combin.Binomial(m, l)) * math.Pow(1-gamma, float64(m-l)) * math.Pow(gamma, float64(l)))
			kl.Set(m-l, m, complex(amp, 0))
		}
		out = append(out, kl)
	}
	return out
}

// channel builds the named Kraus set for an n-level system.
func channel(name string, p float64, n int) ([]*mat.CDense, error) {
	switch name {
	case "dephase":
		return dephasing(p, n), nil
	case "damping":
		return damping(p, n), nil
	}
	return nil, fmt.Errorf("unknown channel %q", name)
}

// basisPOVM returns the projectors onto the n computational basis states.
func basisPOVM(n int) []*mat.CDense {
	out := make([]*mat.CDense, n)
	for k := range out {
		out[k] = mat.NewCDense(n, n, nil)
		out[k].Set(k, k, 1)
	}
	return out
}

// realPOVM converts row-major real element lists to square matrices.
func realPOVM(elements [][]float64) []*mat.CDense {
	out := make([]*mat.CDense, len(elements))
	for i, e := range elements {
		n := int(math.Round(math.Sqrt(float64(len(e)))))
		data := make([]complex128, len(e))
		for j, v := range e {
			data[j] = complex(v, 0)
		}
		out[i] = mat.NewCDense(n, n, data)
	}
	return out
}
