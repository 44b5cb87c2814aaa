package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/morph/internal/ir"
	"github.com/roach88/morph/internal/journal"
	"github.com/roach88/morph/internal/observe"
	"github.com/roach88/morph/internal/store"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Database string
	Stream   string
}

// RecordOutput is the result of journaling one document.
type RecordOutput struct {
	Stream  string `json:"stream" yaml:"stream"`
	Created bool   `json:"created" yaml:"created"`
	Changed bool   `json:"changed" yaml:"changed"`
	Seq     int64  `json:"seq" yaml:"seq"`
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	Leaves  int    `json:"leaves" yaml:"leaves"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <document>",
		Short: "Journal the change from a stream's current value to a document",
		Long: `Journal a document into a change stream.

The first record of a stream stores the document as the stream's base.
Every later record observes replacing the replayed value with the document
and appends the resulting change.

Exit codes:
  0 - Success
  2 - Command error (unreadable document, database error, etc.)

Examples:
  morph record --db ./morph.db --stream config config.json
  morph record --db ./morph.db --stream config config.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Stream, "stream", "", "stream ID (required)")
	_ = cmd.MarkFlagRequired("stream")

	return cmd
}

func runRecord(opts *RecordOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	doc, err := LoadValue(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load document", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	out, err := recordValue(ctx, st, opts.Stream, doc, opts.Logger(cmd))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to record document", err)
	}
	return opts.formatter(cmd).Success(formatRecord(out), out)
}

// recordValue journals doc into stream. A missing stream is created with
// doc as its base.
func recordValue(ctx context.Context, st *store.Store, stream string, doc ir.IRValue, logger *slog.Logger, observeOpts ...observe.Option) (RecordOutput, error) {
	out := RecordOutput{Stream: stream}

	root, err := currentValue(ctx, st, stream)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		root = ir.ToAny(doc)
		out.Created = true
	case err != nil:
		return out, err
	}

	rec, err := journal.Open(ctx, st, stream, &root,
		journal.WithLogger(logger),
		journal.WithObserveOptions(observeOpts...),
	)
	if err != nil {
		return out, err
	}
	if out.Created {
		return out, nil
	}

	next := ir.ToAny(doc)
	res, err := rec.Record(ctx, func(r *any) error {
		*r = next
		return nil
	})
	if err != nil {
		return out, err
	}

	out.Seq = rec.Seq()
	if res.Changed {
		out.Changed = true
		out.ID = res.Record.ID
		out.Leaves = res.Record.Leaves
	}
	return out, nil
}

// currentValue replays stream into a dynamic value.
func currentValue(ctx context.Context, st *store.Store, stream string) (any, error) {
	if _, err := st.ReadBase(ctx, stream); err != nil {
		return nil, err
	}
	v, err := st.Replay(ctx, stream)
	if err != nil {
		return nil, err
	}
	return ir.ToAny(v), nil
}

func formatRecord(out RecordOutput) string {
	switch {
	case out.Created:
		return fmt.Sprintf("Created stream %s.", out.Stream)
	case !out.Changed:
		return fmt.Sprintf("No changes to %s (seq %d).", out.Stream, out.Seq)
	default:
		return fmt.Sprintf("Recorded %s seq %d: %d leaves (%s)", out.Stream, out.Seq, out.Leaves, out.ID)
	}
}
