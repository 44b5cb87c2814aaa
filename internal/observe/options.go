package observe

import "log/slog"

type config struct {
	logger *slog.Logger
	hook   Hook
	ids    IDGenerator
}

// Option configures a session.
type Option func(*config)

// WithLogger sets the logger used for session debug logs.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithHook registers a hook for session lifecycle events. Repeated calls
// accumulate hooks.
func WithHook(h Hook) Option {
	return func(c *config) {
		if c.hook == nil {
			c.hook = h
			return
		}
		c.hook = NewMultiHook(c.hook, h)
	}
}

// WithIDGenerator sets the session ID generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *config) {
		c.ids = g
	}
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.hook == nil {
		c.hook = NoOpHook{}
	}
	if c.ids == nil {
		c.ids = UUIDv7Generator{}
	}
	return c
}
