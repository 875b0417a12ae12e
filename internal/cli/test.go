package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hollow/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
}

// TestResult holds the overall test result.
type TestResult struct {
	harness.SuiteResult
	Scenarios []string `json:"scenarios"`
}

func (r TestResult) String() string {
	if r.TotalScenarios == 0 {
		return "No scenarios found."
	}
	var b strings.Builder
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "✗ %s\n  %s\n", filepath.Base(f.ScenarioPath), f.Error)
	}
	fmt.Fprintf(&b, "%d passed, %d failed, %d total", r.Passed, r.Failed, r.TotalScenarios)
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-dir|scenario.yaml>...",
		Short: "Run conformance scenarios",
		Long: `Run YAML scenarios against fresh in-memory sessions.

Each scenario declares holes from CUE specs, runs its flow of fills,
constraints, reverts and evaluations, and checks its assertions.
Directories are searched for .yaml and .yml files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  hollow test ./scenarios
  hollow test ./scenarios --filter "revert_*"
  hollow test ./scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	paths, err := findScenarioFiles(args, opts.Filter)
	if err != nil {
		return formatter.Fail("test", err)
	}
	for _, p := range paths {
		formatter.VerboseLog("Running %s", p)
	}

	suite := harness.RunSuite(cmd.Context(), paths)
	result := TestResult{SuiteResult: *suite, Scenarios: paths}
	if result.Scenarios == nil {
		result.Scenarios = []string{}
	}
	if err := formatter.Success(result); err != nil {
		return err
	}
	if suite.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
	}
	return nil
}

// findScenarioFiles expands directories into their scenario files and
// applies the filter to file names.
func findScenarioFiles(args []string, filter string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", arg), err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := harness.FindScenarios(arg)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "finding scenarios", err)
		}
		paths = append(paths, found...)
	}
	if filter == "" {
		return paths, nil
	}
	var kept []string
	for _, p := range paths {
		ok, err := filepath.Match(filter, filepath.Base(p))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid filter %q", filter), err)
		}
		if ok {
			kept = append(kept, p)
		}
	}
	return kept, nil
}
