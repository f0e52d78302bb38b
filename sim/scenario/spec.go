// Package scenario loads YAML experiment descriptions and runs them against
// the sim engine, shot by shot.
package scenario

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/photon-weave/photon-weave/sim"
	"github.com/photon-weave/photon-weave/sim/ops"
)

// Scenario is the top-level scenario file.
// Loaded from YAML via Load(path).
type Scenario struct {
	Name         string         `yaml:"name"`
	Seed         *int64         `yaml:"seed,omitempty"`
	Shots        int            `yaml:"shots,omitempty"` // 0 = one shot
	Contractions *bool          `yaml:"contractions,omitempty"`
	Dimension    *DimensionSpec `yaml:"dimension,omitempty"`
	Envelopes    []EnvelopeSpec `yaml:"envelopes"`
	States       []StateSpec    `yaml:"states,omitempty"`
	Steps        []StepSpec     `yaml:"steps"`
}

// DimensionSpec overrides the adaptive truncation parameters. Zero fields keep
// the engine default.
type DimensionSpec struct {
	Threshold     float64 `yaml:"threshold,omitempty"`
	GrowthStep    int     `yaml:"growth_step,omitempty"`
	SafetyMargin  int     `yaml:"safety_margin,omitempty"`
	MaxDimensions int     `yaml:"max_dimensions,omitempty"`
}

// EnvelopeSpec declares an envelope. Its states are addressed as
// "<name>.fock" and "<name>.pol".
type EnvelopeSpec struct {
	Name         string  `yaml:"name"`
	Fock         int     `yaml:"fock"`
	FockDims     int     `yaml:"fock_dims,omitempty"` // 0 = label + 1
	Polarization string  `yaml:"polarization,omitempty"`
	Wavelength   float64 `yaml:"wavelength,omitempty"` // nm; 0 = default
}

// StateSpec declares a standalone state.
type StateSpec struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`            // fock, polarization, qudit
	Index int    `yaml:"index,omitempty"` // fock number or qudit basis index
	Dims  int    `yaml:"dims,omitempty"`
	Label string `yaml:"label,omitempty"` // polarization label
}

// StepSpec is one action of a shot.
type StepSpec struct {
	Action         string             `yaml:"action"`
	Targets        []string           `yaml:"targets"`
	Operator       string             `yaml:"operator,omitempty"`
	Params         map[string]float64 `yaml:"params,omitempty"`
	Level          string             `yaml:"level,omitempty"`
	Channel        string             `yaml:"channel,omitempty"`
	P              float64            `yaml:"p,omitempty"`
	Basis          bool               `yaml:"basis,omitempty"`
	Elements       [][]float64        `yaml:"elements,omitempty"` // row-major real POVM elements
	NonDestructive bool               `yaml:"non_destructive,omitempty"`
	Partial        bool               `yaml:"partial,omitempty"`
}

// Valid value registries.
var (
	validActions = map[string]bool{
		"combine": true, "expand": true, "contract": true, "apply": true,
		"kraus": true, "reorder": true, "measure": true, "povm": true,
	}
	validKinds = map[string]bool{
		"fock": true, "polarization": true, "qudit": true,
	}
	validChannels = map[string]bool{
		"dephase": true, "damping": true,
	}
)

// Load reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario from YAML bytes.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &s, nil
}

// EngineConfig applies the scenario's overrides to base.
func (s *Scenario) EngineConfig(base sim.EngineConfig) sim.EngineConfig {
	cfg := base
	if s.Seed != nil {
		cfg.Seed = *s.Seed
	}
	if s.Contractions != nil {
		cfg.Contractions = *s.Contractions
	}
	if d := s.Dimension; d != nil {
		if d.Threshold != 0 {
			cfg.Dimension.Threshold = d.Threshold
		}
		if d.GrowthStep != 0 {
			cfg.Dimension.GrowthStep = d.GrowthStep
		}
		if d.SafetyMargin != 0 {
			cfg.Dimension.SafetyMargin = d.SafetyMargin
		}
		if d.MaxDimensions != 0 {
			cfg.Dimension.MaxDimensions = d.MaxDimensions
		}
	}
	return cfg
}

// Validate checks that all fields in the scenario are valid and that every
// step refers to a declared state.
func (s *Scenario) Validate() error {
	if s.Shots < 0 {
		return fmt.Errorf("shots must be >= 0, got %d", s.Shots)
	}
	if len(s.Envelopes) == 0 && len(s.States) == 0 {
		return fmt.Errorf("at least one envelope or state required")
	}
	names := make(map[string]bool)
	declare := func(name string) error {
		if names[name] {
			return fmt.Errorf("duplicate state name %q", name)
		}
		names[name] = true
		return nil
	}
	for i, e := range s.Envelopes {
		prefix := fmt.Sprintf("envelope[%d]", i)
		if e.Name == "" {
			return fmt.Errorf("%s: name required", prefix)
		}
		if e.Fock < 0 {
			return fmt.Errorf("%s: fock must be >= 0, got %d", prefix, e.Fock)
		}
		if e.FockDims != 0 && e.FockDims <= e.Fock {
			return fmt.Errorf("%s: fock_dims %d cannot hold |%d⟩", prefix, e.FockDims, e.Fock)
		}
		if e.Polarization != "" {
			if _, err := sim.ParsePolarizationLabel(e.Polarization); err != nil {
				return fmt.Errorf("%s: %w", prefix, err)
			}
		}
		if e.Wavelength < 0 || math.IsNaN(e.Wavelength) || math.IsInf(e.Wavelength, 0) {
			return fmt.Errorf("%s: wavelength must be finite and >= 0, got %f", prefix, e.Wavelength)
		}
		for _, n := range []string{e.Name + ".fock", e.Name + ".pol"} {
			if err := declare(n); err != nil {
				return fmt.Errorf("%s: %w", prefix, err)
			}
		}
	}
	for i, st := range s.States {
		if err := validateState(&st, i); err != nil {
			return err
		}
		if err := declare(st.Name); err != nil {
			return fmt.Errorf("state[%d]: %w", i, err)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step required")
	}
	for i, st := range s.Steps {
		if err := validateStep(&st, i, names); err != nil {
			return err
		}
	}
	return nil
}

func validateState(st *StateSpec, idx int) error {
	prefix := fmt.Sprintf("state[%d]", idx)
	if st.Name == "" {
		return fmt.Errorf("%s: name required", prefix)
	}
	if !validKinds[st.Kind] {
		return fmt.Errorf("%s: unknown kind %q; valid: fock, polarization, qudit", prefix, st.Kind)
	}
	switch st.Kind {
	case "polarization":
		if _, err := sim.ParsePolarizationLabel(st.Label); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
	case "qudit":
		if st.Dims < 1 {
			return fmt.Errorf("%s: qudit dims must be >= 1, got %d", prefix, st.Dims)
		}
		fallthrough
	case "fock":
		if st.Index < 0 {
			return fmt.Errorf("%s: index must be >= 0, got %d", prefix, st.Index)
		}
		if st.Dims != 0 && st.Index >= st.Dims {
			return fmt.Errorf("%s: index %d out of range for dims %d", prefix, st.Index, st.Dims)
		}
	}
	return nil
}

func validateStep(st *StepSpec, idx int, names map[string]bool) error {
	prefix := fmt.Sprintf("step[%d]", idx)
	if !validActions[st.Action] {
		return fmt.Errorf("%s: unknown action %q; valid: combine, expand, contract, apply, kraus, reorder, measure, povm", prefix, st.Action)
	}
	if len(st.Targets) == 0 {
		return fmt.Errorf("%s: at least one target required", prefix)
	}
	seen := make(map[string]bool, len(st.Targets))
	for _, t := range st.Targets {
		if !names[t] {
			return fmt.Errorf("%s: unknown target %q", prefix, t)
		}
		if seen[t] {
			return fmt.Errorf("%s: duplicate target %q", prefix, t)
		}
		seen[t] = true
	}
	if st.Level != "" {
		if _, err := sim.ParseExpansionLevel(st.Level); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
	}
	switch st.Action {
	case "combine":
		if len(st.Targets) < 2 {
			return fmt.Errorf("%s: combine needs at least two targets", prefix)
		}
	case "apply":
		if _, err := ops.Lookup(st.Operator, ops.Params(st.Params)); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
	case "kraus":
		if !validChannels[st.Channel] {
			return fmt.Errorf("%s: unknown channel %q; valid: dephase, damping", prefix, st.Channel)
		}
		if st.Channel == "damping" && len(st.Targets) != 1 {
			return fmt.Errorf("%s: damping acts on exactly one target", prefix)
		}
		if st.P < 0 || st.P > 1 {
			return fmt.Errorf("%s: p must be in [0, 1], got %f", prefix, st.P)
		}
	case "povm":
		if st.Basis == (len(st.Elements) > 0) {
			return fmt.Errorf("%s: povm needs exactly one of basis or elements", prefix)
		}
		for j, e := range st.Elements {
			n := int(math.Round(math.Sqrt(float64(len(e)))))
			if n == 0 || n*n != len(e) {
				return fmt.Errorf("%s: element[%d] has %d entries, not a square matrix", prefix, j, len(e))
			}
		}
	}
	return nil
}
