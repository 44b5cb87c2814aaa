package journal

import (
	"log/slog"

	"github.com/roach88/morph/internal/observe"
)

type config struct {
	logger      *slog.Logger
	seq         Sequencer
	observeOpts []observe.Option
}

// Option configures a Recorder.
type Option func(*config)

// WithLogger sets the logger for journal writes. It is also passed to
// every observation session.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithSequencer replaces the logical clock. The sequencer must already
// be positioned at the stream's last seq.
// Default: NewClockAt(last seq of the stream).
func WithSequencer(s Sequencer) Option {
	return func(c *config) {
		c.seq = s
	}
}

// WithObserveOptions adds options for every observation session, such as
// observe.WithHook or observe.WithIDGenerator.
func WithObserveOptions(opts ...observe.Option) Option {
	return func(c *config) {
		c.observeOpts = append(c.observeOpts, opts...)
	}
}
