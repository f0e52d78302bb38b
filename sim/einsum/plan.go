// Package einsum builds and executes tensor-contraction plans over product
// spaces. A plan is derived from ordering metadata only: which slots make up
// the product, which slots an operator touches and whether a leg belongs to
// the ket (row) or bra (column) side. Product arrays are only ever reshaped
// into per-slot axes, never transposed; any change of axis order is itself a
// contraction.
//
// Legs are labelled with unbounded integers, so the number of slots in a
// product is not limited by an alphabet.
package einsum

import (
	"errors"
	"fmt"
	"strings"
)

// Label names one tensor leg inside a plan. Equal labels on different
// operands are contracted; labels missing from the output are summed.
type Label int

// Plan is a contraction expression: one label list per operand plus the
// labels of the result, in result axis order.
type Plan struct {
	Inputs [][]Label
	Output []Label
}

var (
	// ErrUnknownSlot is returned when a target is not part of the slot list.
	ErrUnknownSlot = errors.New("einsum: target is not a slot of the product")
	// ErrDuplicateSlot is returned when a slot or target appears twice.
	ErrDuplicateSlot = errors.New("einsum: duplicate slot")
	// ErrNotPermutation is returned by the reorder builders when the new
	// order is not a permutation of the slot list.
	ErrNotPermutation = errors.New("einsum: order is not a permutation of the slots")
)

// String renders the plan as "0 1,1 2->0 2".
func (p Plan) String() string {
	parts := make([]string, len(p.Inputs))
	for i, in := range p.Inputs {
		parts[i] = joinLabels(in)
	}
	return strings.Join(parts, ",") + "->" + joinLabels(p.Output)
}

func joinLabels(ls []Label) string {
	s := make([]string, len(ls))
	for i, l := range ls {
		s[i] = fmt.Sprint(int(l))
	}
	return strings.Join(s, " ")
}

// counter hands out fresh labels in increasing order.
type counter struct{ next Label }

func (c *counter) fresh() Label {
	l := c.next
	c.next++
	return l
}

// members validates that states has no duplicates and that every element of
// subset is one of them. It returns the subset as a lookup set.
func members[S comparable](states, subset []S) (map[S]bool, error) {
	seen := make(map[S]bool, len(states))
	for _, s := range states {
		if seen[s] {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateSlot, s)
		}
		seen[s] = true
	}
	in := make(map[S]bool, len(subset))
	for _, s := range subset {
		if !seen[s] {
			return nil, fmt.Errorf("%w: %v", ErrUnknownSlot, s)
		}
		if in[s] {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateSlot, s)
		}
		in[s] = true
	}
	return in, nil
}

// ApplyOperatorVector plans operator·ψ where ψ is the column vector of the
// product over states and the operator acts on targets, in target order.
// Operands are (operator, state); the operator is reshaped to
// dims(targets)++dims(targets), the state to dims(states)++[1].
func ApplyOperatorVector[S comparable](states, targets []S) (Plan, error) {
	in, err := members(states, targets)
	if err != nil {
		return Plan{}, err
	}
	var c counter
	ket := make(map[S]Label, len(states))
	state := make([]Label, 0, len(states)+1)
	for _, s := range states {
		ket[s] = c.fresh()
		state = append(state, ket[s])
	}
	col := c.fresh()
	state = append(state, col)

	out := make(map[S]Label, len(targets))
	op := make([]Label, 0, 2*len(targets))
	for _, t := range targets {
		out[t] = c.fresh()
		op = append(op, out[t])
	}
	for _, t := range targets {
		op = append(op, ket[t])
	}

	result := make([]Label, 0, len(states)+1)
	for _, s := range states {
		if in[s] {
			result = append(result, out[s])
		} else {
			result = append(result, ket[s])
		}
	}
	result = append(result, col)
	return Plan{Inputs: [][]Label{op, state}, Output: result}, nil
}

// ApplyOperatorMatrix plans U·ρ·U† as two independent contractions. The ket
// plan takes (U, ρ) and contracts U against the row legs; the bra plan takes
// (Uρ, conj(U)) and contracts the conjugated operator against the column legs.
func ApplyOperatorMatrix[S comparable](states, targets []S) (ket, bra Plan, err error) {
	in, err := members(states, targets)
	if err != nil {
		return Plan{}, Plan{}, err
	}
	var c counter
	row := make(map[S]Label, len(states))
	col := make(map[S]Label, len(states))
	rho := make([]Label, 0, 2*len(states))
	for _, s := range states {
		row[s] = c.fresh()
		rho = append(rho, row[s])
	}
	for _, s := range states {
		col[s] = c.fresh()
		rho = append(rho, col[s])
	}

	outRow := make(map[S]Label, len(targets))
	outCol := make(map[S]Label, len(targets))
	left := make([]Label, 0, 2*len(targets))
	right := make([]Label, 0, 2*len(targets))
	for _, t := range targets {
		outRow[t] = c.fresh()
		left = append(left, outRow[t])
	}
	for _, t := range targets {
		left = append(left, row[t])
	}
	for _, t := range targets {
		outCol[t] = c.fresh()
		right = append(right, outCol[t])
	}
	for _, t := range targets {
		right = append(right, col[t])
	}

	mid := make([]Label, 0, 2*len(states))
	for _, s := range states {
		if in[s] {
			mid = append(mid, outRow[s])
		} else {
			mid = append(mid, row[s])
		}
	}
	mid = append(mid, rho[len(states):]...)

	result := make([]Label, 0, 2*len(states))
	result = append(result, mid[:len(states)]...)
	for _, s := range states {
		if in[s] {
			result = append(result, outCol[s])
		} else {
			result = append(result, col[s])
		}
	}

	ket = Plan{Inputs: [][]Label{left, rho}, Output: mid}
	bra = Plan{Inputs: [][]Label{mid, right}, Output: result}
	return ket, bra, nil
}

// TraceOutVector plans the reduced density operator of keep from a product
// vector. Operands are (ψ, conj ψ). Dropped slots share one label across both
// operands, kept slots get separate row and column labels. The result is
// rows(keep)++cols(keep) in slot order.
func TraceOutVector[S comparable](states, keep []S) (Plan, error) {
	in, err := members(states, keep)
	if err != nil {
		return Plan{}, err
	}
	var c counter
	ket := make([]Label, 0, len(states)+1)
	bra := make([]Label, 0, len(states)+1)
	var rows, cols []Label
	for _, s := range states {
		l := c.fresh()
		ket = append(ket, l)
		if in[s] {
			b := c.fresh()
			bra = append(bra, b)
			rows = append(rows, l)
			cols = append(cols, b)
		} else {
			bra = append(bra, l)
		}
	}
	colLeg := c.fresh()
	ket = append(ket, colLeg)
	bra = append(bra, colLeg)
	return Plan{Inputs: [][]Label{ket, bra}, Output: append(rows, cols...)}, nil
}

// TraceOutMatrix plans the partial trace of a product density matrix over
// every slot not in keep. Each dropped slot's row and column legs share a
// label; kept slots keep distinct labels.
func TraceOutMatrix[S comparable](states, keep []S) (Plan, error) {
	in, err := members(states, keep)
	if err != nil {
		return Plan{}, err
	}
	var c counter
	row := make([]Label, len(states))
	for i := range states {
		row[i] = c.fresh()
	}
	rho := append([]Label{}, row...)
	var rows, cols []Label
	for i, s := range states {
		if in[s] {
			l := c.fresh()
			rho = append(rho, l)
			rows = append(rows, row[i])
			cols = append(cols, l)
		} else {
			rho = append(rho, row[i])
		}
	}
	return Plan{Inputs: [][]Label{rho}, Output: append(rows, cols...)}, nil
}

func permutation[S comparable](states, order []S) (map[S]bool, error) {
	if len(order) != len(states) {
		return nil, fmt.Errorf("%w: %d slots, %d in new order", ErrNotPermutation, len(states), len(order))
	}
	in, err := members(states, order)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotPermutation, err)
	}
	return in, nil
}

// ReorderVector plans the relabelling of a product vector into order.
func ReorderVector[S comparable](states, order []S) (Plan, error) {
	if _, err := permutation(states, order); err != nil {
		return Plan{}, err
	}
	var c counter
	col := c.fresh()
	label := make(map[S]Label, len(states))
	src := make([]Label, 0, len(states)+1)
	for _, s := range states {
		label[s] = c.fresh()
		src = append(src, label[s])
	}
	src = append(src, col)
	dst := make([]Label, 0, len(order)+1)
	for _, s := range order {
		dst = append(dst, label[s])
	}
	dst = append(dst, col)
	return Plan{Inputs: [][]Label{src}, Output: dst}, nil
}

// ReorderMatrix plans the relabelling of a product density matrix into order.
// Row and column groups are permuted identically.
func ReorderMatrix[S comparable](states, order []S) (Plan, error) {
	if _, err := permutation(states, order); err != nil {
		return Plan{}, err
	}
	var c counter
	row := make(map[S]Label, len(states))
	col := make(map[S]Label, len(states))
	src := make([]Label, 0, 2*len(states))
	for _, s := range states {
		row[s] = c.fresh()
		src = append(src, row[s])
	}
	for _, s := range states {
		col[s] = c.fresh()
		src = append(src, col[s])
	}
	dst := make([]Label, 0, 2*len(order))
	for _, s := range order {
		dst = append(dst, row[s])
	}
	for _, s := range order {
		dst = append(dst, col[s])
	}
	return Plan{Inputs: [][]Label{src}, Output: dst}, nil
}

// MeasureVector plans the joint outcome distribution of expose. Operands are
// (ψ, conj ψ) and every leg is shared between them; exposed legs stay free in
// the output, the rest are summed. The result has dims(expose) in slot order.
func MeasureVector[S comparable](states, expose []S) (Plan, error) {
	in, err := members(states, expose)
	if err != nil {
		return Plan{}, err
	}
	var c counter
	legs := make([]Label, 0, len(states)+1)
	var out []Label
	for _, s := range states {
		l := c.fresh()
		legs = append(legs, l)
		if in[s] {
			out = append(out, l)
		}
	}
	legs = append(legs, c.fresh())
	return Plan{Inputs: [][]Label{legs, legs}, Output: out}, nil
}

// MeasureMatrix plans the joint outcome distribution of expose from a product
// density matrix: the diagonal of the partial trace over the other slots.
func MeasureMatrix[S comparable](states, expose []S) (Plan, error) {
	in, err := members(states, expose)
	if err != nil {
		return Plan{}, err
	}
	var c counter
	legs := make([]Label, 0, 2*len(states))
	var out []Label
	for _, s := range states {
		l := c.fresh()
		legs = append(legs, l)
		if in[s] {
			out = append(out, l)
		}
	}
	legs = append(legs, legs...)
	return Plan{Inputs: [][]Label{legs}, Output: out}, nil
}

// ProjectVector plans ⟨k|ψ⟩ over the selected slots. Operands are
// (selector, ψ) where the selector is the product of one-hot rows over
// selected, in slot order. The result drops the selected legs.
func ProjectVector[S comparable](states, selected []S) (Plan, error) {
	in, err := members(states, selected)
	if err != nil {
		return Plan{}, err
	}
	var c counter
	var sel, out []Label
	legs := make([]Label, 0, len(states)+1)
	for _, s := range states {
		l := c.fresh()
		legs = append(legs, l)
		if in[s] {
			sel = append(sel, l)
		} else {
			out = append(out, l)
		}
	}
	col := c.fresh()
	legs = append(legs, col)
	out = append(out, col)
	return Plan{Inputs: [][]Label{sel, legs}, Output: out}, nil
}

// ProjectMatrix plans ⟨k|ρ|k⟩ over the selected slots. Operands are
// (selector, ρ, selector).
func ProjectMatrix[S comparable](states, selected []S) (Plan, error) {
	in, err := members(states, selected)
	if err != nil {
		return Plan{}, err
	}
	var c counter
	var selRow, selCol, rows, cols []Label
	legs := make([]Label, 0, 2*len(states))
	for _, s := range states {
		l := c.fresh()
		legs = append(legs, l)
		if in[s] {
			selRow = append(selRow, l)
		} else {
			rows = append(rows, l)
		}
	}
	for _, s := range states {
		l := c.fresh()
		legs = append(legs, l)
		if in[s] {
			selCol = append(selCol, l)
		} else {
			cols = append(cols, l)
		}
	}
	return Plan{Inputs: [][]Label{selRow, legs, selCol}, Output: append(rows, cols...)}, nil
}
