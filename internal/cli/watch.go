package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/morph/internal/metrics"
	"github.com/roach88/morph/internal/observe"
	"github.com/roach88/morph/internal/store"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Database    string        // optional - journal every change
	Stream      string        // stream ID when journaling
	MetricsAddr string        // optional - serve Prometheus metrics
	Debounce    time.Duration // quiet period before a file is re-read
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <document>",
		Short: "Print the change each time a document is saved",
		Long: `Watch a JSON or YAML document and print the change after every write.

With --db and --stream every change is also journaled, exactly as the
record command does. With --metrics-addr session metrics are served at
/metrics.

Runs until interrupted.

Examples:
  morph watch config.yaml
  morph watch config.json --db ./morph.db --stream config
  morph watch config.json --metrics-addr :9090 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal changes into this SQLite database")
	cmd.Flags().StringVar(&opts.Stream, "stream", "", "stream ID when journaling (default: the document path)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 100*time.Millisecond, "quiet period before re-reading the document")

	return cmd
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger(cmd)
	out := opts.formatter(cmd)

	collector := metrics.NewCollector(nil).Init()
	if opts.MetricsAddr != "" {
		stop := serveMetrics(opts.MetricsAddr, collector, logger)
		defer stop()
	}
	observeOpts := []observe.Option{observe.WithLogger(logger), observe.WithHook(collector)}

	doc, err := LoadValue(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load document", err)
	}

	var st *store.Store
	stream := opts.Stream
	if stream == "" {
		stream = path
	}
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		rec, err := recordValue(ctx, st, stream, doc, logger, observeOpts...)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record document", err)
		}
		if err := out.Success(formatRecord(rec), rec); err != nil {
			return err
		}
	}

	w, err := newFileWatcher(path, opts.Debounce, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to watch document", err)
	}
	out.VerboseLog("Watching %s", path)

	prev := doc
	return w.Run(ctx, func() {
		next, err := LoadValue(path)
		if err != nil {
			// Editors write in several steps; the next event retries.
			logger.Warn("failed to load document", "path", path, "error", err)
			return
		}

		if st != nil {
			rec, err := recordValue(ctx, st, stream, next, logger, observeOpts...)
			if err != nil {
				logger.Error("failed to record document", "path", path, "error", err)
				return
			}
			prev = next
			if rec.Changed {
				_ = out.Success(formatRecord(rec), rec)
			}
			return
		}

		c, err := Diff(prev, next, observeOpts...)
		if err != nil {
			logger.Error("failed to diff document", "path", path, "error", err)
			return
		}
		prev = next
		if c == nil {
			return
		}
		payload, err := newChangeOutput(c)
		if err != nil {
			logger.Error("failed to encode change", "path", path, "error", err)
			return
		}
		_ = out.Success(formatLeaves(c), payload)
	})
}

// serveMetrics serves the collector at /metrics until stop is called.
func serveMetrics(addr string, collector *metrics.Collector, logger *slog.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
