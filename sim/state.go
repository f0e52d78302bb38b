package sim

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/photon-weave/photon-weave/sim/internal/linalg"
)

// Kind distinguishes the physical degree of freedom a State describes.
type Kind int

const (
	// KindFock is a truncated photon-number mode.
	KindFock Kind = iota
	// KindPolarization is a two-level polarization qubit.
	KindPolarization
	// KindQudit is a generic d-level system.
	KindQudit
)

func (k Kind) String() string {
	switch k {
	case KindFock:
		return "fock"
	case KindPolarization:
		return "polarization"
	case KindQudit:
		return "qudit"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// PolarizationLabel names the six standard polarization states.
type PolarizationLabel int

const (
	PolarizationH PolarizationLabel = iota // horizontal
	PolarizationV                          // vertical
	PolarizationD                          // diagonal
	PolarizationA                          // anti-diagonal
	PolarizationR                          // right circular
	PolarizationL                          // left circular
)

var polarizationNames = [...]string{"H", "V", "D", "A", "R", "L"}

func (p PolarizationLabel) String() string {
	if p < 0 || int(p) >= len(polarizationNames) {
		return fmt.Sprintf("PolarizationLabel(%d)", int(p))
	}
	return polarizationNames[p]
}

// ParsePolarizationLabel converts "H", "V", "D", "A", "R" or "L".
func ParsePolarizationLabel(s string) (PolarizationLabel, error) {
	for i, n := range polarizationNames {
		if n == s {
			return PolarizationLabel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown polarization label %q", s)
}

func (p PolarizationLabel) vector() *mat.CDense {
	r := complex(1/math.Sqrt2, 0)
	switch p {
	case PolarizationH:
		return linalg.Column(1, 0)
	case PolarizationV:
		return linalg.Column(0, 1)
	case PolarizationD:
		return linalg.Column(r, r)
	case PolarizationA:
		return linalg.Column(r, -r)
	case PolarizationR:
		return linalg.Column(r, r*1i)
	default:
		return linalg.Column(r, -r*1i)
	}
}

// State is one subsystem: a Fock mode, a polarization qubit or a qudit.
//
// A standalone State owns its representation. Once combined into a
// ProductSpace the representation moves there and the State only records its
// membership. A measured State is terminal.
type State struct {
	id       uuid.UUID
	kind     Kind
	dims     int // 0 while an unexpanded Fock state has no explicit truncation
	rep      representation
	space    *ProductSpace
	envelope *Envelope
	measured bool
}

// StateOption configures a State at construction.
type StateOption func(*State)

// WithDimensions fixes the truncation of a Fock state up front.
func WithDimensions(n int) StateOption {
	if n < 1 {
		panic(fmt.Sprintf("WithDimensions: dimension must be >= 1, got %d", n))
	}
	return func(s *State) { s.dims = n }
}

func newState(kind Kind, dims int, rep representation) *State {
	return &State{id: uuid.New(), kind: kind, dims: dims, rep: rep}
}

// NewFock creates the Fock state |n⟩. Unless WithDimensions is given the
// truncation is chosen on first expansion as n+1.
func NewFock(n int, opts ...StateOption) *State {
	if n < 0 {
		panic(fmt.Sprintf("NewFock: photon number must be >= 0, got %d", n))
	}
	s := newState(KindFock, 0, labelRep{index: n})
	for _, opt := range opts {
		opt(s)
	}
	if s.dims != 0 && n >= s.dims {
		panic(fmt.Sprintf("NewFock: |%d⟩ does not fit in %d dimensions", n, s.dims))
	}
	return s
}

// NewPolarization creates a polarization qubit in one of the six standard
// states.
func NewPolarization(l PolarizationLabel) *State {
	if l < PolarizationH || l > PolarizationL {
		panic(fmt.Sprintf("NewPolarization: invalid label %d", int(l)))
	}
	return newState(KindPolarization, 2, labelRep{index: int(l)})
}

// NewQudit creates the basis state |index⟩ of a dims-level system.
func NewQudit(dims, index int) *State {
	if dims < 1 || index < 0 || index >= dims {
		panic(fmt.Sprintf("NewQudit: index %d out of range for %d dimensions", index, dims))
	}
	return newState(KindQudit, dims, labelRep{index: index})
}

// NewFromVector creates a state of the given kind from amplitudes. The
// vector is copied and normalised.
func NewFromVector(kind Kind, v *mat.CDense) (*State, error) {
	r, c := v.Dims()
	if c != 1 {
		return nil, fmt.Errorf("%w: expected a column vector, got %dx%d", ErrDimensionMismatch, r, c)
	}
	if kind == KindPolarization && r != 2 {
		return nil, fmt.Errorf("%w: polarization needs 2 amplitudes, got %d", ErrDimensionMismatch, r)
	}
	vec := linalg.Clone(v)
	if err := normalizeVector(vec); err != nil {
		return nil, err
	}
	return newState(kind, r, vectorRep{vec: vec}), nil
}

// NewFromMatrix creates a state of the given kind from a density matrix. The
// matrix is copied and trace-normalised.
func NewFromMatrix(kind Kind, rho *mat.CDense) (*State, error) {
	r, c := rho.Dims()
	if r != c {
		return nil, fmt.Errorf("%w: density matrix is %dx%d", ErrDimensionMismatch, r, c)
	}
	if kind == KindPolarization && r != 2 {
		return nil, fmt.Errorf("%w: polarization needs a 2x2 density matrix, got %dx%d", ErrDimensionMismatch, r, c)
	}
	m := linalg.Clone(rho)
	if err := normalizeTrace(m); err != nil {
		return nil, err
	}
	return newState(kind, r, matrixRep{rho: m}), nil
}

// ID returns the state's unique identifier.
func (s *State) ID() uuid.UUID { return s.id }

// Kind returns the degree of freedom.
func (s *State) Kind() Kind { return s.kind }

// Measured reports whether the state is terminal.
func (s *State) Measured() bool { return s.measured }

// Envelope returns the envelope the state belongs to, or nil.
func (s *State) Envelope() *Envelope { return s.envelope }

// Space returns the product space holding the state, or nil when standalone.
func (s *State) Space() *ProductSpace { return s.space }

// Dimensions returns the truncation the state is, or will be, expanded at.
func (s *State) Dimensions() int {
	if s.dims == 0 {
		if l, ok := s.rep.(labelRep); ok {
			return l.index + 1
		}
	}
	return s.dims
}

// Level returns the current expansion level. A combined state reports the
// level of its space.
func (s *State) Level() ExpansionLevel {
	if s.space != nil {
		return s.space.Level()
	}
	if s.rep == nil {
		return Label
	}
	return s.rep.level()
}

// Label returns the basis index when the state is held at Label level.
func (s *State) Label() (int, bool) {
	l, ok := s.rep.(labelRep)
	return l.index, ok && s.space == nil
}

func (s *State) basisVector(index int) *mat.CDense {
	if s.kind == KindPolarization {
		return PolarizationLabel(index).vector()
	}
	return linalg.Basis(s.Dimensions(), index)
}

// Vector returns a copy of the state vector. Label states are expanded on the
// fly without changing their level. Combined and mixed states have no vector
// of their own.
func (s *State) Vector() (*mat.CDense, error) {
	if s.measured {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
	}
	if s.space != nil {
		return nil, fmt.Errorf("%w: %s is combined into a product space", ErrInvariantViolation, s)
	}
	switch r := s.rep.(type) {
	case labelRep:
		return s.basisVector(r.index), nil
	case vectorRep:
		return linalg.Clone(r.vec), nil
	case matrixRep:
		return nil, fmt.Errorf("%w: %s is held as a density matrix", ErrInvariantViolation, s)
	}
	return nil, fmt.Errorf("%w: %s has no representation", ErrInvariantViolation, s)
}

// DensityMatrix returns the state's density matrix. For a combined state this
// is the reduced density matrix obtained by tracing out every other slot.
func (s *State) DensityMatrix() (*mat.CDense, error) {
	if s.measured {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
	}
	if s.space != nil {
		return s.space.TraceOut(s)
	}
	switch r := s.rep.(type) {
	case labelRep:
		return linalg.Outer(s.basisVector(r.index)), nil
	case vectorRep:
		return linalg.Outer(r.vec), nil
	case matrixRep:
		return linalg.Clone(r.rho), nil
	}
	return nil, fmt.Errorf("%w: %s has no representation", ErrInvariantViolation, s)
}

// Expand moves the state one level up: Label to Vector, Vector to Matrix.
// Expanding a combined state expands its whole space.
func (s *State) Expand() error {
	if s.measured {
		return fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
	}
	if s.space != nil {
		return s.space.Expand()
	}
	switch r := s.rep.(type) {
	case labelRep:
		s.dims = s.Dimensions()
		s.rep = vectorRep{vec: s.basisVector(r.index)}
	case vectorRep:
		s.rep = matrixRep{rho: linalg.Outer(r.vec)}
	case matrixRep:
		return fmt.Errorf("%w: cannot expand %s past matrix", ErrInvariantViolation, s)
	default:
		return fmt.Errorf("%w: %s has no representation", ErrInvariantViolation, s)
	}
	logrus.Debugf("expanded %s", s)
	return nil
}

// ExpandTo expands until the state is held at level or above.
func (s *State) ExpandTo(level ExpansionLevel) error {
	for s.Level() < level {
		if err := s.Expand(); err != nil {
			return err
		}
	}
	return nil
}

// Contract moves the state down towards final as far as it can: Matrix to
// Vector when ρ is pure within tol, Vector to Label when exactly one amplitude
// is 1. A state that cannot contract stays where it is; that is not an error.
func (s *State) Contract(final ExpansionLevel, tol float64) error {
	if s.measured {
		return fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
	}
	if s.space != nil {
		return s.space.Contract(final, tol)
	}
	for s.Level() > final {
		switch r := s.rep.(type) {
		case matrixRep:
			v, ok, err := purify(r.rho, tol)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			s.rep = vectorRep{vec: v}
		case vectorRep:
			k, ok := basisIndex(r.vec, tol)
			if !ok {
				return nil
			}
			s.rep = labelRep{index: k}
		}
		logrus.Debugf("contracted %s", s)
	}
	return nil
}

// Resize changes the truncation of a Fock or qudit state. Shrinking drops the
// upper levels and renormalises.
func (s *State) Resize(n int) error {
	if s.measured {
		return fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
	}
	if s.kind == KindPolarization {
		return fmt.Errorf("%w: polarization is fixed at 2 dimensions", ErrDimensionMismatch)
	}
	if n < 1 {
		return fmt.Errorf("%w: cannot resize to %d dimensions", ErrDimensionMismatch, n)
	}
	if s.space != nil {
		return s.space.Resize(s, n)
	}
	switch r := s.rep.(type) {
	case labelRep:
		if r.index >= n {
			return fmt.Errorf("%w: |%d⟩ does not fit in %d dimensions", ErrDimensionMismatch, r.index, n)
		}
	case vectorRep:
		v := linalg.ResizeVector(r.vec, n)
		if err := normalizeVector(v); err != nil {
			return err
		}
		s.rep = vectorRep{vec: v}
	case matrixRep:
		m := linalg.ResizeMatrix(r.rho, n)
		if err := normalizeTrace(m); err != nil {
			return err
		}
		s.rep = matrixRep{rho: m}
	}
	s.dims = n
	return nil
}

// Apply evolves the state by op. Label states are expanded to Vector first.
// Fock states run dimension estimation for operators that hint a cutoff.
func (s *State) Apply(ctx *Context, op OperatorProvider) error {
	if s.measured {
		return fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
	}
	if s.space != nil {
		return s.space.Apply(ctx, op, s)
	}

	var vec, rho *mat.CDense
	switch r := s.rep.(type) {
	case labelRep:
		vec = s.basisVector(r.index)
	case vectorRep:
		vec = r.vec
	case matrixRep:
		rho = r.rho
	default:
		return fmt.Errorf("%w: %s has no representation", ErrInvariantViolation, s)
	}
	cur := vec
	if cur == nil {
		cur = rho
	}

	dims := s.Dimensions()
	if _, ok := op.(CutoffHinter); ok && s.kind == KindFock {
		est, err := estimateFor(ctx, cur, op)
		if err != nil {
			return err
		}
		if est.Dimensions != dims {
			logrus.Debugf("resizing %s from %d to %d dimensions", s, dims, est.Dimensions)
			dims = est.Dimensions
			if vec != nil {
				vec = linalg.ResizeVector(vec, dims)
				if err := normalizeVector(vec); err != nil {
					return err
				}
			} else {
				rho = linalg.ResizeMatrix(rho, dims)
				if err := normalizeTrace(rho); err != nil {
					return err
				}
			}
		}
	}

	u, err := buildOperator(op, []int{dims})
	if err != nil {
		return err
	}
	if vec != nil {
		vec = linalg.Mul(u, vec)
		if renormalizes(op) {
			if err := normalizeVector(vec); err != nil {
				return err
			}
		}
		s.rep = vectorRep{vec: vec}
	} else {
		rho = linalg.Sandwich(u, rho)
		if err := normalizeTrace(rho); err != nil {
			return err
		}
		s.rep = matrixRep{rho: rho}
	}
	s.dims = dims
	return nil
}

// ApplyKraus applies the channel ρ -> Σ K ρ K†. The state is expanded to
// Matrix. With contractions enabled it is contracted afterwards.
func (s *State) ApplyKraus(ctx *Context, ops ...*mat.CDense) error {
	if s.measured {
		return fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
	}
	if s.space != nil {
		return s.space.ApplyKraus(ctx, ops, s)
	}
	if err := checkKraus(ops, s.Dimensions(), ctx.Tolerance()); err != nil {
		return err
	}
	rho, err := s.DensityMatrix()
	if err != nil {
		return err
	}
	n := s.Dimensions()
	out := linalg.Zeros(n, n)
	for _, k := range ops {
		out = linalg.Add(out, linalg.Sandwich(k, rho))
	}
	if err := normalizeTrace(out); err != nil {
		return err
	}
	s.dims = n
	s.rep = matrixRep{rho: out}
	if ctx.Contractions() {
		return s.Contract(Label, ctx.Tolerance())
	}
	return nil
}

func (s *State) String() string {
	if l, ok := s.rep.(labelRep); ok && s.space == nil && !s.measured {
		if s.kind == KindPolarization {
			return fmt.Sprintf("|%s⟩", PolarizationLabel(l.index))
		}
		return fmt.Sprintf("|%d⟩", l.index)
	}
	switch {
	case s.measured:
		return fmt.Sprintf("%s(measured)", s.kind)
	case s.space != nil:
		return fmt.Sprintf("%s(combined, dims=%d)", s.kind, s.dims)
	}
	return fmt.Sprintf("%s(%s, dims=%d)", s.kind, s.Level(), s.dims)
}
