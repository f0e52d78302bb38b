package trace

// TraceLevel controls the verbosity of run tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelMeasurements captures measurement outcomes only.
	TraceLevelMeasurements TraceLevel = "measurements"
	// TraceLevelOperations captures every operation and every measurement.
	TraceLevelOperations TraceLevel = "operations"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:         true,
	TraceLevelMeasurements: true,
	TraceLevelOperations:   true,
	"":                     true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records during a scenario run.
type SimulationTrace struct {
	Config       TraceConfig
	Operations   []OperationRecord
	Measurements []MeasurementRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:       config,
		Operations:   make([]OperationRecord, 0),
		Measurements: make([]MeasurementRecord, 0),
	}
}

// RecordOperation appends an operation record when the level is operations.
func (st *SimulationTrace) RecordOperation(record OperationRecord) {
	if st.Config.Level != TraceLevelOperations {
		return
	}
	st.Operations = append(st.Operations, record)
}

// RecordMeasurement appends a measurement record unless tracing is off.
func (st *SimulationTrace) RecordMeasurement(record MeasurementRecord) {
	switch st.Config.Level {
	case TraceLevelMeasurements, TraceLevelOperations:
		st.Measurements = append(st.Measurements, record)
	}
}
