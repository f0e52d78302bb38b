package scenario

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/photon-weave/photon-weave/sim"
	"github.com/photon-weave/photon-weave/sim/ops"
	"github.com/photon-weave/photon-weave/sim/trace"
)

// Result holds the outcomes of every shot, keyed by state name.
type Result struct {
	Outcomes []map[string]int
}

// Histogram counts outcomes per state name across all shots.
func (r *Result) Histogram() map[string]map[int]int {
	h := make(map[string]map[int]int)
	for _, shot := range r.Outcomes {
		for name, k := range shot {
			if h[name] == nil {
				h[name] = make(map[int]int)
			}
			h[name][k]++
		}
	}
	return h
}

// Names returns every state name that received an outcome, sorted.
func (r *Result) Names() []string {
	var names []string
	for name := range r.Histogram() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runner executes a scenario shot by shot against one engine context, so a
// whole run is reproducible from the seed.
//
// Thread-safety: NOT thread-safe.
type Runner struct {
	scenario *Scenario
	ctx      *sim.Context
	trace    *trace.SimulationTrace
}

// NewRunner validates s, applies its overrides to base and prepares a
// context. A nil trace records nothing.
func NewRunner(s *Scenario, base sim.EngineConfig, tr *trace.SimulationTrace) (*Runner, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	cfg := s.EngineConfig(base)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if tr == nil {
		tr = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelNone})
	}
	return &Runner{scenario: s, ctx: sim.NewContext(cfg), trace: tr}, nil
}

// Context returns the engine context the runner samples from.
func (r *Runner) Context() *sim.Context { return r.ctx }

// Trace returns the trace the runner records into.
func (r *Runner) Trace() *trace.SimulationTrace { return r.trace }

// Shots returns the number of shots Run performs.
func (r *Runner) Shots() int {
	if r.scenario.Shots == 0 {
		return 1
	}
	return r.scenario.Shots
}

// Run executes every shot. Each shot starts from freshly built states.
func (r *Runner) Run() (*Result, error) {
	shots := r.Shots()
	logrus.Infof("running scenario %q: %d shots, seed %d", r.scenario.Name, shots, r.ctx.Key())
	res := &Result{Outcomes: make([]map[string]int, 0, shots)}
	for i := 0; i < shots; i++ {
		out, err := r.shot(i)
		if err != nil {
			return nil, fmt.Errorf("shot %d: %w", i, err)
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	logrus.Infof("scenario %q complete: %d shots, %d keys drawn", r.scenario.Name, shots, r.ctx.Splits())
	return res, nil
}

// world is the set of states one shot operates on.
type world struct {
	composite *sim.Composite
	byName    map[string]*sim.State
	names     map[*sim.State]string
}

func (w *world) add(name string, s *sim.State) {
	w.byName[name] = s
	w.names[s] = name
}

func (w *world) lookup(names []string) []*sim.State {
	out := make([]*sim.State, len(names))
	for i, n := range names {
		out[i] = w.byName[n]
	}
	return out
}

func (w *world) named(o sim.Outcomes) map[string]int {
	out := make(map[string]int, len(o))
	for s, k := range o {
		out[w.names[s]] = k
	}
	return out
}

// build creates the shot's envelopes and standalone states. Validate has
// already checked every field.
func (s *Scenario) build() *world {
	w := &world{
		composite: sim.NewComposite(),
		byName:    make(map[string]*sim.State),
		names:     make(map[*sim.State]string),
	}
	for _, e := range s.Envelopes {
		var fockOpts []sim.StateOption
		if e.FockDims > 0 {
			fockOpts = append(fockOpts, sim.WithDimensions(e.FockDims))
		}
		fock := sim.NewFock(e.Fock, fockOpts...)
		label := sim.PolarizationH
		if e.Polarization != "" {
			label, _ = sim.ParsePolarizationLabel(e.Polarization)
		}
		pol := sim.NewPolarization(label)
		opts := []sim.EnvelopeOption{sim.WithFock(fock), sim.WithPolarization(pol)}
		if e.Wavelength > 0 {
			opts = append(opts, sim.WithWavelength(e.Wavelength))
		}
		w.composite.AddEnvelopes(sim.NewEnvelope(opts...))
		w.add(e.Name+".fock", fock)
		w.add(e.Name+".pol", pol)
	}
	for _, st := range s.States {
		var state *sim.State
		switch st.Kind {
		case "fock":
			var opts []sim.StateOption
			if st.Dims > 0 {
				opts = append(opts, sim.WithDimensions(st.Dims))
			}
			state = sim.NewFock(st.Index, opts...)
		case "polarization":
			label, _ := sim.ParsePolarizationLabel(st.Label)
			state = sim.NewPolarization(label)
		case "qudit":
			state = sim.NewQudit(st.Dims, st.Index)
		}
		w.composite.AddStates(state)
		w.add(st.Name, state)
	}
	return w
}

func (r *Runner) shot(i int) (map[string]int, error) {
	w := r.scenario.build()
	out := make(map[string]int)
	for j := range r.scenario.Steps {
		st := &r.scenario.Steps[j]
		logrus.Debugf("shot %d step %d: %s %v", i, j, st.Action, st.Targets)
		if err := r.step(w, i, j, st, out); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", j, st.Action, err)
		}
	}
	return out, nil
}

// once visits each distinct unit of targets a single time: the product
// space of a combined state, or the state itself.
func once(targets []*sim.State, f func(*sim.State) error) error {
	seen := make(map[any]bool)
	for _, t := range targets {
		var key any = t
		if ps := t.Space(); ps != nil {
			key = ps
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := f(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) step(w *world, shot, idx int, st *StepSpec, out map[string]int) error {
	targets := w.lookup(st.Targets)
	c := w.composite
	opts := sim.MeasureOptions{NonDestructive: st.NonDestructive, Partial: st.Partial}

	var err error
	switch st.Action {
	case "combine":
		_, err = c.Combine(targets...)
	case "expand":
		err = once(targets, func(t *sim.State) error {
			if st.Level == "" {
				return t.Expand()
			}
			level, _ := sim.ParseExpansionLevel(st.Level)
			return t.ExpandTo(level)
		})
	case "contract":
		level := sim.Label
		if st.Level != "" {
			level, _ = sim.ParseExpansionLevel(st.Level)
		}
		err = once(targets, func(t *sim.State) error {
			return t.Contract(level, r.ctx.Tolerance())
		})
	case "apply":
		var op ops.Provider
		op, err = ops.Lookup(st.Operator, ops.Params(st.Params))
		if err == nil {
			err = c.Apply(r.ctx, op, targets...)
		}
	case "kraus":
		n := 1
		for _, t := range targets {
			n *= t.Dimensions()
		}
		ks, cerr := channel(st.Channel, st.P, n)
		if cerr != nil {
			return cerr
		}
		err = c.ApplyKraus(r.ctx, ks, targets...)
	case "reorder":
		err = c.Reorder(targets...)
	case "measure", "povm":
		var o sim.Outcomes
		if st.Action == "measure" {
			o, err = c.Measure(r.ctx, opts, targets...)
		} else {
			o, err = r.povm(w, st, opts, targets)
		}
		if err != nil {
			return err
		}
		named := w.named(o)
		for name, k := range named {
			out[name] = k
		}
		kind := "projective"
		if st.Action == "povm" {
			kind = "povm"
		}
		r.trace.RecordMeasurement(trace.MeasurementRecord{
			Shot:        shot,
			Step:        idx,
			Kind:        kind,
			Targets:     st.Targets,
			Outcomes:    named,
			Destructive: !st.NonDestructive,
		})
		return nil
	}
	if err != nil {
		return err
	}

	dims := make([]int, len(targets))
	for i, t := range targets {
		dims[i] = t.Dimensions()
	}
	r.trace.RecordOperation(trace.OperationRecord{
		Shot:       shot,
		Step:       idx,
		Action:     st.Action,
		Operator:   st.Operator,
		Targets:    st.Targets,
		Dimensions: dims,
	})
	return nil
}

func (r *Runner) povm(w *world, st *StepSpec, opts sim.MeasureOptions, targets []*sim.State) (sim.Outcomes, error) {
	if !st.Basis {
		return w.composite.MeasurePOVM(r.ctx, realPOVM(st.Elements), opts, targets...)
	}
	n := 1
	for _, t := range targets {
		n *= t.Dimensions()
	}
	return w.composite.MeasurePOVM(r.ctx, basisPOVM(n), opts, targets...)
}
