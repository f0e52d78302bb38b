package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelOperations})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.TotalOperations != 0 || summary.TotalMeasurements != 0 {
		t.Error("expected 0 operations and measurements")
	}
	if summary.Shots != 0 {
		t.Errorf("expected 0 shots, got %d", summary.Shots)
	}
	if len(summary.Histogram) != 0 {
		t.Error("expected empty histogram")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalOperations != 0 || len(summary.ActionCounts) != 0 {
		t.Error("expected zero summary for nil trace")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace over two shots
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelOperations})
	for shot := 0; shot < 2; shot++ {
		st.RecordOperation(OperationRecord{Shot: shot, Action: "combine", Targets: []string{"a", "b"}})
		st.RecordOperation(OperationRecord{Shot: shot, Action: "apply", Operator: "beam-splitter"})
		st.RecordMeasurement(MeasurementRecord{
			Shot:     shot,
			Kind:     "projective",
			Outcomes: map[string]int{"a": 2 * shot, "b": 2 - 2*shot},
		})
	}

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts match
	assert.Equal(t, 4, summary.TotalOperations)
	assert.Equal(t, 2, summary.TotalMeasurements)
	assert.Equal(t, 2, summary.Shots)
	assert.Equal(t, map[string]int{"combine": 2, "apply": 2}, summary.ActionCounts)
	assert.Equal(t, map[string]int{"beam-splitter": 2}, summary.OperatorCounts)
	assert.Equal(t, map[int]int{0: 1, 2: 1}, summary.Histogram["a"])
}

func TestTraceSummary_Frequencies_SortedByOutcome(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelMeasurements})
	for _, k := range []int{1, 0, 1, 1} {
		st.RecordMeasurement(MeasurementRecord{Outcomes: map[string]int{"p": k}})
	}
	outcomes, freqs := Summarize(st).Frequencies("p")
	assert.Equal(t, []int{0, 1}, outcomes)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, freqs, 1e-12)

	outcomes, freqs = Summarize(st).Frequencies("missing")
	assert.Empty(t, outcomes)
	assert.Empty(t, freqs)
}
