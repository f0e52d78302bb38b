package trace

import "sort"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalOperations   int
	TotalMeasurements int
	Shots             int
	ActionCounts      map[string]int         // action → count
	OperatorCounts    map[string]int         // operator name → count of apply records
	Histogram         map[string]map[int]int // state name → outcome → count
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ActionCounts:   make(map[string]int),
		OperatorCounts: make(map[string]int),
		Histogram:      make(map[string]map[int]int),
	}
	if st == nil {
		return summary
	}

	shots := make(map[int]bool)
	summary.TotalOperations = len(st.Operations)
	for _, op := range st.Operations {
		summary.ActionCounts[op.Action]++
		if op.Operator != "" {
			summary.OperatorCounts[op.Operator]++
		}
		shots[op.Shot] = true
	}

	summary.TotalMeasurements = len(st.Measurements)
	for _, m := range st.Measurements {
		for name, k := range m.Outcomes {
			if summary.Histogram[name] == nil {
				summary.Histogram[name] = make(map[int]int)
			}
			summary.Histogram[name][k]++
		}
		shots[m.Shot] = true
	}
	summary.Shots = len(shots)

	return summary
}

// Frequencies returns the outcome frequencies of one state, sorted by
// outcome. Empty for states that were never measured.
func (s *TraceSummary) Frequencies(name string) (outcomes []int, freqs []float64) {
	h := s.Histogram[name]
	total := 0
	for k, n := range h {
		outcomes = append(outcomes, k)
		total += n
	}
	sort.Ints(outcomes)
	for _, k := range outcomes {
		freqs = append(freqs, float64(h[k])/float64(total))
	}
	return outcomes, freqs
}
