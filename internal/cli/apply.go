package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/morph/internal/adapter"
	"github.com/roach88/morph/internal/change"
	"github.com/roach88/morph/internal/ir"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Schema     string // optional CUE schema file
	Definition string // value inside the schema, e.g. "#Config"
}

// ValueOutput is the structured payload of commands that print a value.
type ValueOutput struct {
	Value any `json:"value" yaml:"value"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <base> <change>",
		Short: "Apply a change to a document",
		Long: `Apply a change in wire form to a document and print the result as
canonical JSON.

With --schema the result must also satisfy the CUE schema.

Exit codes:
  0 - Change applied
  1 - Change does not apply, or the result violates the schema
  2 - Command error (unreadable files, etc.)

Examples:
  morph apply config.json change.json
  morph apply config.yaml change.yaml --schema config.cue --definition '#Config'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "CUE schema the result must satisfy")
	cmd.Flags().StringVar(&opts.Definition, "definition", "", "schema value to check against (e.g. #Config)")

	return cmd
}

func runApply(opts *ApplyOptions, basePath, changePath string, cmd *cobra.Command) error {
	base, err := LoadValue(basePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load base document", err)
	}
	c, err := LoadChange(changePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load change", err)
	}

	var result ir.IRValue
	if opts.Schema != "" {
		schema, serr := loadSchema(opts.Schema, opts.Definition)
		if serr != nil {
			return WrapExitError(ExitCommandError, "failed to load schema", serr)
		}
		result, err = schema.Check(base, c)
		if err != nil && !change.IsIndexError(err) && !change.IsOperationError(err) {
			return WrapExitError(ExitFailure, "result violates schema", err)
		}
	} else {
		result, err = adapter.ApplyIR(base, c)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "change does not apply", err)
	}

	text, err := ir.MarshalCanonical(result)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode result", err)
	}
	return opts.formatter(cmd).Success(string(text), ValueOutput{Value: ir.ToAny(result)})
}

func loadSchema(path, definition string) (*adapter.Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	schema, err := adapter.NewCUE().CompileSchema(string(src), definition)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	return schema, nil
}
