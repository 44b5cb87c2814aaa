package cli

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/morph/internal/ir"
	"github.com/roach88/morph/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Stream   string // optional - list streams when empty
	To       int64  // replay up to this seq; 0 means all
	Squash   bool   // print the squashed change instead of the value
}

// StreamSummary describes one stream in the list output.
type StreamSummary struct {
	Stream   string `json:"stream" yaml:"stream"`
	RootType string `json:"root_type" yaml:"root_type"`
	Seq      int64  `json:"seq" yaml:"seq"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild a stream's value from its journal",
		Long: `Replay a change stream from its base and print the resulting value.

Without --stream, lists the streams in the database with their last seq.
With --squash, prints the stream's changes compacted into one change.

Exit codes:
  0 - Success
  1 - The journal does not replay (a change no longer applies)
  2 - Command error (database not found, unknown stream, etc.)

Examples:
  morph replay --db ./morph.db
  morph replay --db ./morph.db --stream config
  morph replay --db ./morph.db --stream config --to 3
  morph replay --db ./morph.db --stream config --squash --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Stream, "stream", "", "stream to replay")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "replay up to and including this seq")
	cmd.Flags().BoolVar(&opts.Squash, "squash", false, "print the squashed change")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Stream == "" {
		return listStreams(ctx, st, opts, cmd)
	}
	if _, err := st.ReadBase(ctx, opts.Stream); err != nil {
		return WrapExitError(ExitCommandError, "failed to read stream", err)
	}

	if opts.Squash {
		c, err := st.Squash(ctx, opts.Stream)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to squash stream", err)
		}
		out, err := newChangeOutput(c)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode change", err)
		}
		return opts.formatter(cmd).Success(formatLeaves(c), out)
	}

	upto := opts.To
	if upto <= 0 {
		upto = math.MaxInt64
	}
	v, err := st.ReplayTo(ctx, opts.Stream, upto)
	if err != nil {
		return WrapExitError(ExitFailure, "stream does not replay", err)
	}
	text, err := ir.MarshalCanonical(v)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode value", err)
	}
	return opts.formatter(cmd).Success(string(text), ValueOutput{Value: ir.ToAny(v)})
}

func listStreams(ctx context.Context, st *store.Store, opts *ReplayOptions, cmd *cobra.Command) error {
	streams, err := st.ListStreams(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list streams", err)
	}

	summaries := make([]StreamSummary, 0, len(streams))
	for _, s := range streams {
		seq, err := st.LastSeq(ctx, s.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read stream", err)
		}
		summaries = append(summaries, StreamSummary{Stream: s.ID, RootType: s.RootType, Seq: seq})
	}

	text := "No streams found in database."
	if len(summaries) > 0 {
		var b strings.Builder
		for i, s := range summaries {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%s\tseq %d\t%s", s.Stream, s.Seq, s.RootType)
		}
		text = b.String()
	}
	return opts.formatter(cmd).Success(text, summaries)
}
