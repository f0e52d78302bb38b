package sim

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultWavelength is the envelope wavelength in nanometres when none is
// given.
const DefaultWavelength = 1550.0

// Envelope pairs the Fock mode and the polarization of one light pulse.
// Measuring either member measures the other unless the measurement is
// partial.
type Envelope struct {
	id           uuid.UUID
	wavelength   float64
	fock         *State
	polarization *State
}

// EnvelopeOption configures an Envelope at construction.
type EnvelopeOption func(*Envelope)

// WithFock uses s as the envelope's Fock mode.
func WithFock(s *State) EnvelopeOption {
	return func(e *Envelope) { e.fock = s }
}

// WithPolarization uses s as the envelope's polarization.
func WithPolarization(s *State) EnvelopeOption {
	return func(e *Envelope) { e.polarization = s }
}

// WithWavelength sets the wavelength in nanometres.
func WithWavelength(nm float64) EnvelopeOption {
	return func(e *Envelope) { e.wavelength = nm }
}

// NewEnvelope creates an envelope, by default in |0⟩ ⊗ |H⟩ at
// DefaultWavelength. It panics if a given state has the wrong kind or
// already belongs to an envelope.
func NewEnvelope(opts ...EnvelopeOption) *Envelope {
	e := &Envelope{id: uuid.New(), wavelength: DefaultWavelength}
	for _, opt := range opts {
		opt(e)
	}
	if e.fock == nil {
		e.fock = NewFock(0)
	}
	if e.polarization == nil {
		e.polarization = NewPolarization(PolarizationH)
	}
	if e.fock.kind != KindFock || e.polarization.kind != KindPolarization {
		panic(fmt.Sprintf("NewEnvelope: got %s and %s, want fock and polarization", e.fock.kind, e.polarization.kind))
	}
	for _, s := range []*State{e.fock, e.polarization} {
		if s.envelope != nil {
			panic(fmt.Sprintf("NewEnvelope: %s already belongs to an envelope", s))
		}
		s.envelope = e
	}
	return e
}

// ID returns the envelope's unique identifier.
func (e *Envelope) ID() uuid.UUID { return e.id }

// Wavelength returns the wavelength in nanometres.
func (e *Envelope) Wavelength() float64 { return e.wavelength }

// Fock returns the Fock mode.
func (e *Envelope) Fock() *State { return e.fock }

// Polarization returns the polarization qubit.
func (e *Envelope) Polarization() *State { return e.polarization }

// Measured reports whether both members are terminal.
func (e *Envelope) Measured() bool {
	return e.fock.measured && e.polarization.measured
}

func (e *Envelope) partner(s *State) *State {
	switch s {
	case e.fock:
		return e.polarization
	case e.polarization:
		return e.fock
	}
	return nil
}

func (e *Envelope) member(s *State) error {
	if s != e.fock && s != e.polarization {
		return fmt.Errorf("%w: %s is not in envelope %s", ErrNotMember, s, e.id)
	}
	return nil
}

// Combine joins the Fock mode and the polarization into one product space.
func (e *Envelope) Combine() (*ProductSpace, error) {
	return Combine(e.fock, e.polarization)
}

// Apply applies op to target, which must be one of the envelope's states.
func (e *Envelope) Apply(ctx *Context, op OperatorProvider, target *State) error {
	if err := e.member(target); err != nil {
		return err
	}
	return target.Apply(ctx, op)
}

// Measure measures both members projectively and returns the photon number
// and the polarization outcome.
func (e *Envelope) Measure(ctx *Context, opts MeasureOptions) (Outcomes, error) {
	var targets []*State
	for _, s := range []*State{e.fock, e.polarization} {
		if !s.measured {
			targets = append(targets, s)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: envelope %s", ErrAlreadyMeasured, e.id)
	}
	opts.Partial = true
	return measureStates(ctx, opts, targets...)
}
