package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/morph/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Golden string // golden file directory (optional)
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run every YAML scenario under a directory.

Each scenario applies its steps inside one observation session and checks
the resulting change, the apply law, the journal replay and its
assertions. With --golden, passing scenarios are also compared with
<golden>/<name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  morph test ./scenarios
  morph test ./scenarios --filter "grow_*"
  morph test ./scenarios --golden ./golden --update
  morph test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden files to compare against")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	runOpts := []harness.Option{harness.WithLogger(opts.Logger(cmd))}
	if opts.Filter != "" {
		runOpts = append(runOpts, harness.WithFilter(opts.Filter))
	}
	if opts.Golden != "" {
		runOpts = append(runOpts, harness.WithGolden(opts.Golden, opts.Update))
	}

	result, err := harness.RunDir(dir, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	if err := opts.formatter(cmd).Success(formatSuite(result), result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

func formatSuite(result *harness.SuiteResult) string {
	if result.Total == 0 {
		return "No scenarios found."
	}

	var b strings.Builder
	for _, s := range result.Scenarios {
		name := s.Name
		if name == "" {
			name = s.Path
		}
		if s.Pass {
			fmt.Fprintf(&b, "✓ %s\n", name)
			continue
		}
		fmt.Fprintf(&b, "✗ %s\n", name)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "    %s\n", strings.ReplaceAll(e, "\n", "\n    "))
		}
	}
	fmt.Fprintf(&b, "\n%d passed, %d failed, %d total", result.Passed, result.Failed, result.Total)
	return b.String()
}
