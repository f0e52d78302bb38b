package ops

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sort"
)

// ErrUnknownOperator is returned by Lookup for names not in the registry.
var ErrUnknownOperator = errors.New("ops: unknown operator")

// Params are the named real parameters of a registry entry.
type Params map[string]float64

type factory func(Params) Provider

var registry = map[string]factory{
	"identity":     func(Params) Provider { return Identity{} },
	"creation":     func(Params) Provider { return Creation{} },
	"annihilation": func(Params) Provider { return Annihilation{} },
	"phase":        func(p Params) Provider { return Phase{Theta: p["theta"]} },
	"displace": func(p Params) Provider {
		return Displace{Alpha: complex(p["alpha"], p["alpha_im"])}
	},
	"squeeze": func(p Params) Provider {
		return Squeeze{Zeta: cmplx.Rect(p["r"], p["phi"])}
	},
	"beam-splitter": func(p Params) Provider { return BeamSplitter{Theta: p["theta"]} },
	"hadamard":      func(Params) Provider { return Hadamard() },
	"pauli-x":       func(Params) Provider { return PauliX() },
	"pauli-y":       func(Params) Provider { return PauliY() },
	"pauli-z":       func(Params) Provider { return PauliZ() },
	"rotate":        func(p Params) Provider { return Rotate(p["theta"]) },
	"retard":        func(p Params) Provider { return Retard(p["phi"]) },
}

// Lookup returns the named operator configured with params. Missing
// parameters default to zero.
func Lookup(name string, params Params) (Provider, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownOperator, name, Names())
	}
	return f(params), nil
}

// Names lists the registered operator names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
