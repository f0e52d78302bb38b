package sim

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/photon-weave/photon-weave/sim/einsum"
	"github.com/photon-weave/photon-weave/sim/internal/linalg"
)

// ProductSpace holds the joint state of two or more combined States as a
// Kronecker product, slot i being states[i]. It is held at Vector or Matrix
// level. A space whose slots all got measured, or that was merged into
// another, is released and rejects further use: ErrAlreadyMeasured after
// measurement, ErrInvariantViolation after a merge.
//
// Thread-safety: NOT thread-safe.
type ProductSpace struct {
	id     uuid.UUID
	states []*State
	level  ExpansionLevel
	data   *mat.CDense

	measured bool
}

type combineUnit struct {
	space *ProductSpace
	state *State
}

func (u combineUnit) level() ExpansionLevel {
	if u.space != nil {
		return u.space.level
	}
	return u.state.rep.level()
}

// payload returns the unit's data at level without mutating the unit.
func (u combineUnit) payload(level ExpansionLevel) (*mat.CDense, error) {
	if u.space != nil {
		if level == Matrix && u.space.level == Vector {
			return linalg.Outer(u.space.data), nil
		}
		return u.space.data, nil
	}
	var vec *mat.CDense
	switch r := u.state.rep.(type) {
	case labelRep:
		vec = u.state.basisVector(r.index)
	case vectorRep:
		vec = r.vec
	case matrixRep:
		return r.rho, nil
	default:
		return nil, fmt.Errorf("%w: %s has no representation", ErrInvariantViolation, u.state)
	}
	if level == Matrix {
		return linalg.Outer(vec), nil
	}
	return vec, nil
}

// Combine joins states, and the spaces any of them already belong to, into
// one ProductSpace. Slots are ordered by first appearance; a pre-existing
// space contributes its slots in its own order. Every unit is brought to the
// highest level among them, and at least to Vector. When all states already
// share one space that space is returned unchanged.
func Combine(states ...*State) (*ProductSpace, error) {
	seen := make(map[*State]bool, len(states))
	spaces := make(map[*ProductSpace]bool)
	var units []combineUnit
	for _, s := range states {
		switch {
		case s == nil:
			return nil, fmt.Errorf("%w: nil state", ErrInvariantViolation)
		case s.measured:
			return nil, fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
		case seen[s]:
			return nil, fmt.Errorf("%w: %s listed twice", ErrInvariantViolation, s)
		}
		seen[s] = true
		if s.space != nil {
			if !spaces[s.space] {
				spaces[s.space] = true
				units = append(units, combineUnit{space: s.space})
			}
			continue
		}
		units = append(units, combineUnit{state: s})
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: nothing to combine", ErrInvariantViolation)
	}
	if len(units) == 1 {
		if units[0].space != nil {
			return units[0].space, nil
		}
		return nil, fmt.Errorf("%w: combining needs at least two subsystems", ErrInvariantViolation)
	}

	level := Vector
	for _, u := range units {
		if u.level() == Matrix {
			level = Matrix
		}
	}
	factors := make([]*mat.CDense, 0, len(units))
	for _, u := range units {
		f, err := u.payload(level)
		if err != nil {
			return nil, err
		}
		factors = append(factors, f)
	}

	ps := &ProductSpace{id: uuid.New(), level: level, data: linalg.KronAll(factors...)}
	for _, u := range units {
		if u.space != nil {
			for _, s := range u.space.states {
				s.space = ps
			}
			ps.states = append(ps.states, u.space.states...)
			u.space.release()
			continue
		}
		s := u.state
		s.dims = s.Dimensions()
		s.rep = nil
		s.space = ps
		ps.states = append(ps.states, s)
	}
	logrus.Debugf("combined %d subsystems into %s", len(ps.states), ps)
	return ps, nil
}

func (ps *ProductSpace) release() {
	ps.states = nil
	ps.data = nil
}

// Released reports whether the space no longer holds any state.
func (ps *ProductSpace) Released() bool { return ps.data == nil }

// ID returns the space's unique identifier.
func (ps *ProductSpace) ID() uuid.UUID { return ps.id }

// Level returns Vector or Matrix.
func (ps *ProductSpace) Level() ExpansionLevel { return ps.level }

// States returns the slots in order.
func (ps *ProductSpace) States() []*State {
	return append([]*State(nil), ps.states...)
}

// Slot returns the slot index of s, or -1.
func (ps *ProductSpace) Slot(s *State) int {
	for i, t := range ps.states {
		if t == s {
			return i
		}
	}
	return -1
}

// Dimensions returns the per-slot dimensions.
func (ps *ProductSpace) Dimensions() []int {
	return dimsOf(ps.states)
}

// Vector returns a copy of the joint state vector.
func (ps *ProductSpace) Vector() (*mat.CDense, error) {
	if err := ps.alive(); err != nil {
		return nil, err
	}
	if ps.level != Vector {
		return nil, fmt.Errorf("%w: space is held as a density matrix", ErrInvariantViolation)
	}
	return linalg.Clone(ps.data), nil
}

// DensityMatrix returns the joint density matrix.
func (ps *ProductSpace) DensityMatrix() (*mat.CDense, error) {
	if err := ps.alive(); err != nil {
		return nil, err
	}
	return ps.density(), nil
}

func (ps *ProductSpace) density() *mat.CDense {
	if ps.level == Vector {
		return linalg.Outer(ps.data)
	}
	return linalg.Clone(ps.data)
}

func (ps *ProductSpace) String() string {
	return fmt.Sprintf("ProductSpace(%s, dims=%v)", ps.level, ps.Dimensions())
}

func dimsOf(states []*State) []int {
	dims := make([]int, len(states))
	for i, s := range states {
		dims[i] = s.dims
	}
	return dims
}

func (ps *ProductSpace) alive() error {
	if ps.data == nil {
		if ps.measured {
			return fmt.Errorf("%w: product space %s was dissolved by measurement", ErrAlreadyMeasured, ps.id)
		}
		return fmt.Errorf("%w: product space was released", ErrInvariantViolation)
	}
	return nil
}

// check validates that targets is a non-empty list of distinct, unmeasured
// members.
func (ps *ProductSpace) check(targets []*State) error {
	if err := ps.alive(); err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("%w: no target states", ErrInvariantViolation)
	}
	seen := make(map[*State]bool, len(targets))
	for _, t := range targets {
		if t == nil {
			return fmt.Errorf("%w: nil state", ErrInvariantViolation)
		}
		if t.measured {
			return fmt.Errorf("%w: %s", ErrAlreadyMeasured, t)
		}
		if t.space != ps {
			return fmt.Errorf("%w: %s is not in %s", ErrNotMember, t, ps)
		}
		if seen[t] {
			return fmt.Errorf("%w: %s listed twice", ErrInvariantViolation, t)
		}
		seen[t] = true
	}
	return nil
}

// inSlotOrder returns targets sorted by slot.
func (ps *ProductSpace) inSlotOrder(targets []*State) []*State {
	in := make(map[*State]bool, len(targets))
	for _, t := range targets {
		in[t] = true
	}
	out := make([]*State, 0, len(targets))
	for _, s := range ps.states {
		if in[s] {
			out = append(out, s)
		}
	}
	return out
}

func mustTensor(data []complex128, shape ...int) *einsum.Tensor {
	t, err := einsum.NewTensor(data, shape...)
	if err != nil {
		panic(fmt.Sprintf("product space tensor: %v", err))
	}
	return t
}

// tensorOf views data at level as a tensor over dims: dims++[1] for a vector,
// dims++dims for a matrix.
func tensorOf(level ExpansionLevel, data *mat.CDense, dims []int) *einsum.Tensor {
	shape := append([]int(nil), dims...)
	if level == Vector {
		shape = append(shape, 1)
	} else {
		shape = append(shape, dims...)
	}
	return mustTensor(linalg.Data(data), shape...)
}

func (ps *ProductSpace) contiguous(targets []*State) (int, bool) {
	first := ps.Slot(targets[0])
	for i, t := range targets {
		if ps.Slot(t) != first+i {
			return first, false
		}
	}
	return first, true
}

// evolve returns u applied to targets of data held at level, without
// touching the space. u maps dims(targets) to outDims and may be
// rectangular. Targets that are contiguous and in slot order are handled by
// padding u with identities; anything else goes through an einsum plan.
func (ps *ProductSpace) evolve(level ExpansionLevel, data, u *mat.CDense, targets []*State, outDims []int) (*mat.CDense, error) {
	dims := ps.Dimensions()
	newDims := append([]int(nil), dims...)
	for i, t := range targets {
		newDims[ps.Slot(t)] = outDims[i]
	}
	n := product(newDims)

	if first, ok := ps.contiguous(targets); ok {
		left := product(dims[:first])
		right := product(dims[first+len(targets):])
		full := linalg.KronAll(linalg.Identity(left), u, linalg.Identity(right))
		if level == Vector {
			return linalg.Mul(full, data), nil
		}
		return linalg.Sandwich(full, data), nil
	}

	opShape := append(append([]int(nil), outDims...), dimsOf(targets)...)
	op := mustTensor(linalg.Data(linalg.Clone(u)), opShape...)
	state := tensorOf(level, data, dims)
	if level == Vector {
		plan, err := einsum.ApplyOperatorVector(ps.states, targets)
		if err != nil {
			return nil, err
		}
		out, err := einsum.Contract(plan, op, state)
		if err != nil {
			return nil, err
		}
		return mat.NewCDense(n, 1, out.Data), nil
	}
	ket, bra, err := einsum.ApplyOperatorMatrix(ps.states, targets)
	if err != nil {
		return nil, err
	}
	mid, err := einsum.Contract(ket, op, state)
	if err != nil {
		return nil, err
	}
	out, err := einsum.Contract(bra, mid, op.Conj())
	if err != nil {
		return nil, err
	}
	return mat.NewCDense(n, n, out.Data), nil
}

// commit normalises data for the space's level and stores it.
func (ps *ProductSpace) commit(data *mat.CDense, renormalize bool) error {
	if ps.level == Vector {
		if renormalize {
			if err := normalizeVector(data); err != nil {
				return err
			}
		}
	} else if err := normalizeTrace(data); err != nil {
		return err
	}
	ps.data = data
	return nil
}

// Apply evolves the space by op acting on targets, in target order. A single
// Fock target with a CutoffHinter operator is resized to the estimated
// truncation first.
func (ps *ProductSpace) Apply(ctx *Context, op OperatorProvider, targets ...*State) error {
	if err := ps.check(targets); err != nil {
		return err
	}
	dims := dimsOf(targets)
	resize := -1
	if _, ok := op.(CutoffHinter); ok && len(targets) == 1 && targets[0].kind == KindFock {
		reduced, err := ps.TraceOut(targets[0])
		if err != nil {
			return err
		}
		est, err := estimateFor(ctx, reduced, op)
		if err != nil {
			return err
		}
		if est.Dimensions != dims[0] {
			resize = est.Dimensions
			dims = []int{resize}
		}
	}
	u, err := buildOperator(op, dims)
	if err != nil {
		return err
	}
	if resize > 0 {
		if err := ps.Resize(targets[0], resize); err != nil {
			return err
		}
	}
	out, err := ps.evolve(ps.level, ps.data, u, targets, dims)
	if err != nil {
		return err
	}
	return ps.commit(out, renormalizes(op))
}

// ApplyKraus applies Σ K ρ K† on targets. The space is expanded to Matrix;
// with contractions enabled it is contracted afterwards.
func (ps *ProductSpace) ApplyKraus(ctx *Context, ops []*mat.CDense, targets ...*State) error {
	if err := ps.check(targets); err != nil {
		return err
	}
	dims := dimsOf(targets)
	if err := checkKraus(ops, product(dims), ctx.Tolerance()); err != nil {
		return err
	}
	rho := ps.density()
	n, _ := rho.Dims()
	sum := linalg.Zeros(n, n)
	for _, k := range ops {
		term, err := ps.evolve(Matrix, rho, k, targets, dims)
		if err != nil {
			return err
		}
		sum = linalg.Add(sum, term)
	}
	if err := normalizeTrace(sum); err != nil {
		return err
	}
	ps.level = Matrix
	ps.data = sum
	if ctx.Contractions() {
		return ps.Contract(Vector, ctx.Tolerance())
	}
	return nil
}

// Resize changes the truncation of slot s to n, keeping the lowest levels and
// renormalising.
func (ps *ProductSpace) Resize(s *State, n int) error {
	if err := ps.check([]*State{s}); err != nil {
		return err
	}
	if n < 1 {
		return fmt.Errorf("%w: cannot resize to %d dimensions", ErrDimensionMismatch, n)
	}
	d := s.dims
	if n == d {
		return nil
	}
	embed := linalg.Zeros(n, d)
	for i := 0; i < min(n, d); i++ {
		embed.Set(i, i, 1)
	}
	out, err := ps.evolve(ps.level, ps.data, embed, []*State{s}, []int{n})
	if err != nil {
		return err
	}
	if err := ps.commit(out, true); err != nil {
		return err
	}
	s.dims = n
	logrus.Debugf("resized %s slot %d from %d to %d", ps, ps.Slot(s), d, n)
	return nil
}

// Expand moves the space from Vector to Matrix.
func (ps *ProductSpace) Expand() error {
	if err := ps.alive(); err != nil {
		return err
	}
	if ps.level == Matrix {
		return fmt.Errorf("%w: cannot expand %s past matrix", ErrInvariantViolation, ps)
	}
	ps.data = linalg.Outer(ps.data)
	ps.level = Matrix
	return nil
}

// Contract moves the space from Matrix to Vector when the joint state is pure
// within tol. A product space never contracts to Label.
func (ps *ProductSpace) Contract(final ExpansionLevel, tol float64) error {
	if err := ps.alive(); err != nil {
		return err
	}
	if ps.level != Matrix || final == Matrix {
		return nil
	}
	v, ok, err := purify(ps.data, tol)
	if err != nil || !ok {
		return err
	}
	ps.data = v
	ps.level = Vector
	return nil
}

// TraceOut returns the reduced density matrix of keep. Kept slots appear in
// slot order, whatever order keep lists them in.
func (ps *ProductSpace) TraceOut(keep ...*State) (*mat.CDense, error) {
	if err := ps.check(keep); err != nil {
		return nil, err
	}
	n := product(dimsOf(keep))
	t := tensorOf(ps.level, ps.data, ps.Dimensions())
	var out *einsum.Tensor
	if ps.level == Vector {
		plan, err := einsum.TraceOutVector(ps.states, keep)
		if err != nil {
			return nil, err
		}
		if out, err = einsum.Contract(plan, t, t.Conj()); err != nil {
			return nil, err
		}
	} else {
		plan, err := einsum.TraceOutMatrix(ps.states, keep)
		if err != nil {
			return nil, err
		}
		if out, err = einsum.Contract(plan, t); err != nil {
			return nil, err
		}
	}
	return mat.NewCDense(n, n, out.Data), nil
}

// Reorder permutes the slots into order, which must list every slot exactly
// once.
func (ps *ProductSpace) Reorder(order ...*State) error {
	if err := ps.check(order); err != nil {
		return err
	}
	if len(order) != len(ps.states) {
		return fmt.Errorf("%w: %d slots, %d in new order", ErrInvariantViolation, len(ps.states), len(order))
	}
	t := tensorOf(ps.level, ps.data, ps.Dimensions())
	var plan einsum.Plan
	var err error
	if ps.level == Vector {
		plan, err = einsum.ReorderVector(ps.states, order)
	} else {
		plan, err = einsum.ReorderMatrix(ps.states, order)
	}
	if err != nil {
		return err
	}
	out, err := einsum.Contract(plan, t)
	if err != nil {
		return err
	}
	r, c := ps.data.Dims()
	ps.data = mat.NewCDense(r, c, out.Data)
	ps.states = append([]*State(nil), order...)
	return nil
}

// Probabilities returns the joint outcome distribution of targets. Targets
// are taken in slot order and the result is row-major over their dimensions.
func (ps *ProductSpace) Probabilities(targets ...*State) ([]float64, error) {
	if err := ps.check(targets); err != nil {
		return nil, err
	}
	_, probs, err := ps.probabilities(targets)
	return probs, err
}

func (ps *ProductSpace) probabilities(targets []*State) ([]*State, []float64, error) {
	ordered := ps.inSlotOrder(targets)
	t := tensorOf(ps.level, ps.data, ps.Dimensions())
	var out *einsum.Tensor
	if ps.level == Vector {
		plan, err := einsum.MeasureVector(ps.states, ordered)
		if err != nil {
			return nil, nil, err
		}
		if out, err = einsum.Contract(plan, t, t.Conj()); err != nil {
			return nil, nil, err
		}
	} else {
		plan, err := einsum.MeasureMatrix(ps.states, ordered)
		if err != nil {
			return nil, nil, err
		}
		if out, err = einsum.Contract(plan, t); err != nil {
			return nil, nil, err
		}
	}
	probs := make([]float64, len(out.Data))
	for i, v := range out.Data {
		probs[i] = max(real(v), 0)
	}
	return ordered, probs, nil
}

// Measure performs a projective measurement of targets in the computational
// basis. Destructive measurement removes the targets and dissolves the space
// once one slot or none remains; non-destructive measurement collapses the
// targets onto the sampled basis state and keeps them.
func (ps *ProductSpace) Measure(ctx *Context, opts MeasureOptions, targets ...*State) (Outcomes, error) {
	if err := ps.check(targets); err != nil {
		return nil, err
	}
	ordered, probs, err := ps.probabilities(targets)
	if err != nil {
		return nil, err
	}
	idx, p, err := sample(ctx, probs)
	if err != nil {
		return nil, err
	}
	if p < ctx.Tolerance() {
		return nil, fmt.Errorf("%w: sampled outcome has probability %g", ErrInvariantViolation, p)
	}
	dims := dimsOf(ordered)
	coords := unravel(idx, dims)
	outcomes := make(Outcomes, len(ordered))
	for i, s := range ordered {
		outcomes[s] = coords[i]
	}

	if opts.NonDestructive {
		projectors := make([]*mat.CDense, len(ordered))
		for i, d := range dims {
			projectors[i] = linalg.Outer(linalg.Basis(d, coords[i]))
		}
		out, err := ps.evolve(ps.level, ps.data, linalg.KronAll(projectors...), ordered, dims)
		if err != nil {
			return nil, err
		}
		if err := ps.commit(out, true); err != nil {
			return nil, err
		}
		logrus.Debugf("measured %v in %s (non-destructive)", coords, ps)
		return outcomes, nil
	}

	sel := einsum.OneHot(dims, coords)
	t := tensorOf(ps.level, ps.data, ps.Dimensions())
	var out *einsum.Tensor
	if ps.level == Vector {
		plan, err := einsum.ProjectVector(ps.states, ordered)
		if err != nil {
			return nil, err
		}
		if out, err = einsum.Contract(plan, sel, t); err != nil {
			return nil, err
		}
	} else {
		plan, err := einsum.ProjectMatrix(ps.states, ordered)
		if err != nil {
			return nil, err
		}
		if out, err = einsum.Contract(plan, sel, t, sel); err != nil {
			return nil, err
		}
	}
	remaining := ps.without(ordered)
	n := product(dimsOf(remaining))
	var data *mat.CDense
	if ps.level == Vector {
		data = mat.NewCDense(n, 1, out.Data)
	} else {
		data = mat.NewCDense(n, n, out.Data)
	}
	if err := ps.commit(data, true); err != nil {
		return nil, err
	}
	for _, s := range ordered {
		s.markMeasured()
	}
	ps.states = remaining
	logrus.Debugf("measured %v, %d slots remain", coords, len(remaining))
	ps.dissolve()
	return outcomes, nil
}

// MeasurePOVM samples one of ops on targets. Elements must be
// prod(dims(targets)) square and sum to the identity. The space is expanded
// to Matrix and collapsed to E ρ E† / p. Destructive measurement then traces
// out the targets.
func (ps *ProductSpace) MeasurePOVM(ctx *Context, ops []*mat.CDense, opts MeasureOptions, targets ...*State) (int, error) {
	if err := ps.check(targets); err != nil {
		return 0, err
	}
	dims := dimsOf(targets)
	if err := checkPOVM(ops, product(dims), ctx.Tolerance()); err != nil {
		return 0, err
	}
	rho := ps.density()
	state := tensorOf(Matrix, rho, ps.Dimensions())
	ket, _, err := einsum.ApplyOperatorMatrix(ps.states, targets)
	if err != nil {
		return 0, err
	}
	n, _ := rho.Dims()
	opShape := append(append([]int(nil), dims...), dims...)
	probs := make([]float64, len(ops))
	for i, e := range ops {
		left, err := einsum.Contract(ket, mustTensor(linalg.Data(linalg.Clone(e)), opShape...), state)
		if err != nil {
			return 0, err
		}
		probs[i] = max(real(linalg.Trace(mat.NewCDense(n, n, left.Data))), 0)
	}
	k, p, err := sample(ctx, probs)
	if err != nil {
		return 0, err
	}
	if p < ctx.Tolerance() {
		return 0, fmt.Errorf("%w: POVM outcome %d has probability %g", ErrInvariantViolation, k, p)
	}
	collapsed, err := ps.evolve(Matrix, rho, ops[k], targets, dims)
	if err != nil {
		return 0, err
	}
	if err := normalizeTrace(collapsed); err != nil {
		return 0, err
	}

	if opts.NonDestructive {
		ps.level = Matrix
		ps.data = collapsed
		logrus.Debugf("POVM outcome %d on %s (non-destructive)", k, ps)
		if ctx.Contractions() {
			return k, ps.Contract(Vector, ctx.Tolerance())
		}
		return k, nil
	}

	remaining := ps.without(targets)
	if len(remaining) > 0 {
		plan, err := einsum.TraceOutMatrix(ps.states, remaining)
		if err != nil {
			return 0, err
		}
		out, err := einsum.Contract(plan, tensorOf(Matrix, collapsed, ps.Dimensions()))
		if err != nil {
			return 0, err
		}
		m := product(dimsOf(remaining))
		ps.data = mat.NewCDense(m, m, out.Data)
		ps.level = Matrix
	}
	for _, s := range targets {
		s.markMeasured()
	}
	ps.states = remaining
	logrus.Debugf("POVM outcome %d, %d slots remain", k, len(remaining))
	ps.dissolve()
	return k, nil
}

func (ps *ProductSpace) without(drop []*State) []*State {
	out := make([]*State, 0, len(ps.states))
	for _, s := range ps.states {
		if !contains(drop, s) {
			out = append(out, s)
		}
	}
	return out
}

func contains(states []*State, s *State) bool {
	for _, t := range states {
		if t == s {
			return true
		}
	}
	return false
}

// dissolve hands the data back to the last remaining state, or releases the
// space when nothing remains.
func (ps *ProductSpace) dissolve() {
	switch len(ps.states) {
	case 0:
		ps.measured = true
		ps.release()
	case 1:
		s := ps.states[0]
		s.space = nil
		if ps.level == Vector {
			s.rep = vectorRep{vec: ps.data}
		} else {
			s.rep = matrixRep{rho: ps.data}
		}
		logrus.Debugf("dissolved %s into %s", ps, s)
		ps.measured = true
		ps.release()
	}
}

func unravel(idx int, dims []int) []int {
	coords := make([]int, len(dims))
	for i := len(dims) - 1; i >= 0; i-- {
		coords[i] = idx % dims[i]
		idx /= dims[i]
	}
	return coords
}
