package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/morph/internal/adapter"
	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
	"github.com/roach88/morph/internal/observe"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	ExitCode bool // exit 1 when the documents differ
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <before> <after>",
		Short: "Print the change that turns one document into another",
		Long: `Observe replacing the before document with the after document and print
the resulting change tree.

Documents are JSON, or YAML when the file ends in .yaml or .yml.

Exit codes:
  0 - Success (or no differences with --exit-code)
  1 - Documents differ (only with --exit-code)
  2 - Command error (unreadable files, etc.)

Examples:
  morph diff old.json new.json
  morph diff old.yaml new.yaml --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.ExitCode, "exit-code", false, "exit with 1 when the documents differ")

	return cmd
}

func runDiff(opts *DiffOptions, beforePath, afterPath string, cmd *cobra.Command) error {
	before, err := LoadValue(beforePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load before document", err)
	}
	after, err := LoadValue(afterPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load after document", err)
	}

	c, err := Diff(before, after, observe.WithLogger(opts.Logger(cmd)))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to diff documents", err)
	}

	out, err := newChangeOutput(c)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode change", err)
	}
	if err := opts.formatter(cmd).Success(formatLeaves(c), out); err != nil {
		return err
	}

	if opts.ExitCode && c != nil {
		return NewExitError(ExitFailure, "documents differ")
	}
	return nil
}

// Diff observes replacing before with after and returns the change with
// encoded payloads. It returns nil when the values are equal.
func Diff(before, after ir.IRValue, opts ...observe.Option) (*change.Change, error) {
	root := ir.ToAny(before)
	next := ir.ToAny(after)
	return adapter.Observe(adapter.JSON{}, &root, func(r *any) error {
		*r = next
		return nil
	}, opts...)
}
