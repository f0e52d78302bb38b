package sim

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Composite is a registry of states and envelopes that may interact. It
// combines members into product spaces on demand, so callers can address
// states without tracking which space they currently live in.
//
// Thread-safety: NOT thread-safe.
type Composite struct {
	id        uuid.UUID
	envelopes []*Envelope
	states    []*State
}

// NewComposite creates a composite over the given envelopes.
func NewComposite(envelopes ...*Envelope) *Composite {
	c := &Composite{id: uuid.New()}
	c.AddEnvelopes(envelopes...)
	return c
}

// ID returns the composite's unique identifier.
func (c *Composite) ID() uuid.UUID { return c.id }

// AddEnvelopes registers envelopes and both of their states.
func (c *Composite) AddEnvelopes(envelopes ...*Envelope) {
	for _, e := range envelopes {
		if containsEnvelope(c.envelopes, e) {
			continue
		}
		c.envelopes = append(c.envelopes, e)
		c.AddStates(e.fock, e.polarization)
	}
}

// AddStates registers standalone states.
func (c *Composite) AddStates(states ...*State) {
	for _, s := range states {
		if !contains(c.states, s) {
			c.states = append(c.states, s)
		}
	}
}

func containsEnvelope(envelopes []*Envelope, e *Envelope) bool {
	for _, x := range envelopes {
		if x == e {
			return true
		}
	}
	return false
}

// Envelopes returns the registered envelopes.
func (c *Composite) Envelopes() []*Envelope {
	return append([]*Envelope(nil), c.envelopes...)
}

// States returns the registered states in registration order.
func (c *Composite) States() []*State {
	return append([]*State(nil), c.states...)
}

// Merge absorbs every member of other.
func (c *Composite) Merge(other *Composite) {
	c.AddEnvelopes(other.envelopes...)
	c.AddStates(other.states...)
}

// ProductSpaces returns the live product spaces holding members, ordered by
// the first member that belongs to each.
func (c *Composite) ProductSpaces() []*ProductSpace {
	var out []*ProductSpace
	for _, s := range c.states {
		if s.space != nil && !containsSpace(out, s.space) {
			out = append(out, s.space)
		}
	}
	return out
}

func containsSpace(spaces []*ProductSpace, ps *ProductSpace) bool {
	for _, x := range spaces {
		if x == ps {
			return true
		}
	}
	return false
}

// Index locates s: the index of its product space in ProductSpaces and its
// slot there. ok is false for standalone, measured or foreign states.
func (c *Composite) Index(s *State) (space, slot int, ok bool) {
	if s.space == nil || !contains(c.states, s) {
		return 0, 0, false
	}
	for i, ps := range c.ProductSpaces() {
		if ps == s.space {
			return i, ps.Slot(s), true
		}
	}
	return 0, 0, false
}

func (c *Composite) members(states []*State) error {
	for _, s := range states {
		if s == nil || !contains(c.states, s) {
			return fmt.Errorf("%w: %v is not in composite %s", ErrNotMember, s, c.id)
		}
		if s.measured {
			return fmt.Errorf("%w: %s", ErrAlreadyMeasured, s)
		}
	}
	return nil
}

// Combine merges the product spaces of states, or the standalone states
// themselves, into one product space.
func (c *Composite) Combine(states ...*State) (*ProductSpace, error) {
	if err := c.members(states); err != nil {
		return nil, err
	}
	return Combine(states...)
}

// space returns the one product space holding all targets, combining them
// first if needed. A single standalone target yields nil.
func (c *Composite) space(targets []*State) (*ProductSpace, error) {
	return c.prepare(targets, nil)
}

// prepare is space with a precondition: validate runs against the targets'
// current dimensions before anything is combined. A single standalone target
// skips it and validates inside its own call.
func (c *Composite) prepare(targets []*State, validate func(dims []int) error) (*ProductSpace, error) {
	if err := c.members(targets); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no target states", ErrInvariantViolation)
	}
	if len(targets) == 1 && targets[0].space == nil {
		return nil, nil
	}
	if validate != nil {
		dims := make([]int, len(targets))
		for i, t := range targets {
			dims[i] = t.Dimensions()
		}
		if err := validate(dims); err != nil {
			return nil, err
		}
	}
	return Combine(targets...)
}

// Apply applies op to targets, in target order, combining them first when
// they span more than one state or space. The operator is built and checked
// before any target is combined.
func (c *Composite) Apply(ctx *Context, op OperatorProvider, targets ...*State) error {
	ps, err := c.prepare(targets, func(dims []int) error {
		_, err := buildOperator(op, dims)
		return err
	})
	if err != nil {
		return err
	}
	if ps == nil {
		return targets[0].Apply(ctx, op)
	}
	logrus.Debugf("applying %T to %d targets in %s", op, len(targets), ps)
	return ps.Apply(ctx, op, targets...)
}

// ApplyKraus applies the channel Σ K ρ K† to targets.
func (c *Composite) ApplyKraus(ctx *Context, ops []*mat.CDense, targets ...*State) error {
	ps, err := c.prepare(targets, func(dims []int) error {
		return checkKraus(ops, product(dims), ctx.Tolerance())
	})
	if err != nil {
		return err
	}
	if ps == nil {
		return targets[0].ApplyKraus(ctx, ops...)
	}
	return ps.ApplyKraus(ctx, ops, targets...)
}

// Measure measures targets projectively. Unless opts.Partial is set the
// envelope partners of targets are measured too.
func (c *Composite) Measure(ctx *Context, opts MeasureOptions, targets ...*State) (Outcomes, error) {
	if err := c.members(targets); err != nil {
		return nil, err
	}
	return measureStates(ctx, opts, withPartners(targets, opts)...)
}

// MeasurePOVM samples one of ops acting jointly on targets. Every target is
// mapped to the element index.
func (c *Composite) MeasurePOVM(ctx *Context, ops []*mat.CDense, opts MeasureOptions, targets ...*State) (Outcomes, error) {
	ps, err := c.prepare(targets, func(dims []int) error {
		return checkPOVM(ops, product(dims), ctx.Tolerance())
	})
	if err != nil {
		return nil, err
	}
	if ps == nil {
		return targets[0].MeasurePOVM(ctx, ops, opts)
	}
	k, err := ps.MeasurePOVM(ctx, ops, opts, targets...)
	if err != nil {
		return nil, err
	}
	out := make(Outcomes, len(targets))
	for _, t := range targets {
		out[t] = k
	}
	var partners []*State
	for _, p := range withPartners(targets, opts)[len(targets):] {
		if !p.measured {
			partners = append(partners, p)
		}
	}
	if len(partners) > 0 {
		o, err := measureStates(ctx, MeasureOptions{NonDestructive: opts.NonDestructive, Partial: true}, partners...)
		if err != nil {
			return nil, err
		}
		out.merge(o)
	}
	return out, nil
}

// TraceOut returns the reduced density matrix of targets, in slot order.
// Targets spread over several spaces are combined first.
func (c *Composite) TraceOut(targets ...*State) (*mat.CDense, error) {
	ps, err := c.space(targets)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		return targets[0].DensityMatrix()
	}
	return ps.TraceOut(targets...)
}

// Reorder moves order to the front of their shared product space, keeping the
// remaining slots in their current relative order.
func (c *Composite) Reorder(order ...*State) error {
	ps, err := c.space(order)
	if err != nil {
		return err
	}
	if ps == nil {
		return nil
	}
	full := append(append([]*State(nil), order...), ps.without(order)...)
	return ps.Reorder(full...)
}
