// Package trace provides operation and measurement recording for scenario
// runs. This package has no dependencies on sim/; it stores pure data types
// keyed by the names scenarios give their states.
package trace

// OperationRecord captures a single state-changing engine call.
type OperationRecord struct {
	Shot       int
	Step       int
	Action     string   // combine, expand, contract, apply, kraus, reorder
	Operator   string   // registry name for apply; empty otherwise
	Targets    []string // state names in the order they were passed
	Dimensions []int    // per-target dimensions after the call (nil if not tracked)
}

// MeasurementRecord captures a single measurement and its outcomes.
type MeasurementRecord struct {
	Shot        int
	Step        int
	Kind        string         // projective or povm
	Targets     []string       // state names that were asked for
	Outcomes    map[string]int // every state that got an outcome, partners included
	Destructive bool
}
