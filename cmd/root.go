package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/photon-weave/photon-weave/sim"
	"github.com/photon-weave/photon-weave/sim/scenario"
	"github.com/photon-weave/photon-weave/sim/trace"
)

var (
	// CLI flags for scenario runs
	scenarioPath string  // Path to the scenario YAML
	seed         int64   // Seed for outcome sampling (overrides the scenario)
	shots        int     // Number of shots (overrides the scenario)
	contractions bool    // Auto-contract after Kraus and POVM application
	tolerance    float64 // Contraction and completeness tolerance
	traceLevel   string  // Trace verbosity level
	logLevel     string  // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "photon-weave",
	Short: "Tensor-product state engine for photonic quantum optics",
}

// runOptions carries the flags that override scenario values. Nil fields
// keep the scenario's own setting.
type runOptions struct {
	seed         *int64
	shots        *int
	contractions *bool
	tolerance    float64
	traceLevel   string
}

// runScenario loads, runs and reports one scenario file.
func runScenario(w io.Writer, path string, opts runOptions) error {
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	if opts.seed != nil {
		sc.Seed = opts.seed
	}
	if opts.shots != nil {
		sc.Shots = *opts.shots
	}
	if opts.contractions != nil {
		sc.Contractions = opts.contractions
	}
	if !trace.IsValidTraceLevel(opts.traceLevel) {
		return fmt.Errorf("unknown trace level %q; valid: none, measurements, operations", opts.traceLevel)
	}

	base := sim.DefaultEngineConfig()
	if opts.tolerance > 0 {
		base.ContractionTolerance = opts.tolerance
	}
	tr := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevel(opts.traceLevel)})
	runner, err := scenario.NewRunner(sc, base, tr)
	if err != nil {
		return err
	}
	res, err := runner.Run()
	if err != nil {
		return err
	}

	name := sc.Name
	if name == "" {
		name = path
	}
	fmt.Fprintf(w, "Scenario: %s (seed %d, %d shots)\n", name, runner.Context().Key(), runner.Shots())
	printOutcomes(w, res)
	if tr.Config.Level != trace.TraceLevelNone && tr.Config.Level != "" {
		printSummary(w, trace.Summarize(tr))
	}
	return nil
}

func printOutcomes(w io.Writer, res *scenario.Result) {
	fmt.Fprintln(w, "\n=== Outcomes ===")
	hist := res.Histogram()
	total := len(res.Outcomes)
	for _, name := range res.Names() {
		var outcomes []int
		for k := range hist[name] {
			outcomes = append(outcomes, k)
		}
		sort.Ints(outcomes)
		parts := make([]string, len(outcomes))
		for i, k := range outcomes {
			n := hist[name][k]
			parts[i] = fmt.Sprintf("%d=%d (%.3f)", k, n, float64(n)/float64(total))
		}
		fmt.Fprintf(w, "%s: %s\n", name, strings.Join(parts, " "))
	}
}

func printSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "\n=== Trace Summary ===")
	fmt.Fprintf(w, "Shots: %d\n", s.Shots)
	fmt.Fprintf(w, "Operations: %d\n", s.TotalOperations)
	fmt.Fprintf(w, "Measurements: %d\n", s.TotalMeasurements)
	printCounts(w, "Actions", s.ActionCounts)
	printCounts(w, "Operators", s.OperatorCounts)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
}

// runCmd executes a scenario using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario file and print the outcome histogram",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if scenarioPath == "" {
			logrus.Fatalf("Scenario file not provided. Use -f <scenario.yaml>.")
		}

		opts := runOptions{tolerance: tolerance, traceLevel: traceLevel}
		if cmd.Flags().Changed("seed") {
			opts.seed = &seed
		}
		if cmd.Flags().Changed("shots") {
			if shots < 1 {
				logrus.Fatalf("--shots must be >= 1, got %d", shots)
			}
			opts.shots = &shots
		}
		if cmd.Flags().Changed("contractions") {
			opts.contractions = &contractions
		}

		if err := runScenario(cmd.OutOrStdout(), scenarioPath, opts); err != nil {
			logrus.Fatalf("Scenario failed: %v", err)
		}
		logrus.Info("Scenario complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVarP(&scenarioPath, "scenario", "f", "", "Path to the scenario YAML file")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for outcome sampling (overrides the scenario seed)")
	runCmd.Flags().IntVar(&shots, "shots", 1, "Number of shots (overrides the scenario)")
	runCmd.Flags().BoolVar(&contractions, "contractions", false, "Auto-contract after Kraus and POVM application")
	runCmd.Flags().Float64Var(&tolerance, "tolerance", 0, "Contraction and completeness tolerance (0 = engine default)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "operations", "Trace level (none, measurements, operations)")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
}
