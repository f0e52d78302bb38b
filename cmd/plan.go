package cmd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/photon-weave/photon-weave/sim/einsum"
)

var (
	// CLI flags for plan printing
	planSlots   int   // Number of slots in the product
	planTargets []int // Slot indices the plan acts on, in order
	planMatrix  bool  // Plan for a density matrix instead of a vector
)

// formatPlan renders the contraction plan(s) of action over slots 0..slots-1.
// Matrix-level operator application yields a ket and a bra plan.
func formatPlan(action string, slots int, targets []int, matrix bool) (string, error) {
	if slots < 1 {
		return "", fmt.Errorf("--slots must be >= 1, got %d", slots)
	}
	states := make([]int, slots)
	for i := range states {
		states[i] = i
	}

	var plans []einsum.Plan
	var names []string
	var err error
	switch action {
	case "apply":
		if matrix {
			var ket, bra einsum.Plan
			ket, bra, err = einsum.ApplyOperatorMatrix(states, targets)
			plans, names = []einsum.Plan{ket, bra}, []string{"ket", "bra"}
			break
		}
		var p einsum.Plan
		p, err = einsum.ApplyOperatorVector(states, targets)
		plans = []einsum.Plan{p}
	case "trace":
		plans, err = single(matrix, einsum.TraceOutVector[int], einsum.TraceOutMatrix[int], states, targets)
	case "reorder":
		plans, err = single(matrix, einsum.ReorderVector[int], einsum.ReorderMatrix[int], states, targets)
	case "measure":
		plans, err = single(matrix, einsum.MeasureVector[int], einsum.MeasureMatrix[int], states, targets)
	case "project":
		plans, err = single(matrix, einsum.ProjectVector[int], einsum.ProjectMatrix[int], states, targets)
	default:
		return "", fmt.Errorf("unknown plan %q; valid: apply, trace, reorder, measure, project", action)
	}
	if err != nil {
		return "", err
	}
	if names == nil {
		names = []string{"plan"}
	}

	var b strings.Builder
	for i, p := range plans {
		fmt.Fprintf(&b, "%s: %s\n", names[i], p)
	}
	return b.String(), nil
}

type builder func(states, targets []int) (einsum.Plan, error)

func single(matrix bool, vector, density builder, states, targets []int) ([]einsum.Plan, error) {
	build := vector
	if matrix {
		build = density
	}
	p, err := build(states, targets)
	if err != nil {
		return nil, err
	}
	return []einsum.Plan{p}, nil
}

// planCmd prints the contraction plan for an operation on a product
var planCmd = &cobra.Command{
	Use:   "plan <apply|trace|reorder|measure|project>",
	Short: "Print the contraction plan of a product-space operation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		out, err := formatPlan(args[0], planSlots, planTargets, planMatrix)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
	},
}

func init() {
	planCmd.Flags().IntVar(&planSlots, "slots", 2, "Number of slots in the product")
	planCmd.Flags().IntSliceVar(&planTargets, "targets", []int{0}, "Comma-separated slot indices, in operator order")
	planCmd.Flags().BoolVar(&planMatrix, "matrix", false, "Plan for a density matrix instead of a vector")
}
