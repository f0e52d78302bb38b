// Package sim provides the tensor-product state engine for photon-weave.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - state.go: State lifecycle (label → vector → matrix, combined, measured)
//   - product.go: ProductSpace, the Kronecker-product joint state and every operation on it
//   - measure.go: projective and POVM measurement with envelope partner folding
//
// # Architecture
//
// The sim package owns states and their spaces; helpers live in sub-packages:
//   - sim/einsum/: contraction plans over slot labels and the dense executor
//   - sim/ops/: reference operator kernels (Fock, polarization, beam splitter)
//   - sim/scenario/: YAML experiment files and their runner
//   - sim/trace/: operation and measurement recording
//   - sim/internal/linalg/: complex linear algebra on gonum storage
//
// # Key Interfaces
//
//   - OperatorProvider: builds an operator matrix for given target dimensions
//   - Renormalizer: marks non-unitary operators whose vector results are renormalised
//   - CutoffHinter: seeds Fock dimension estimation from the input photon number
//
// Every operation that samples or auto-contracts takes an explicit *Context
// carrying the seed-derived random stream and the contraction toggle.
package sim
