package observe

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/morph/internal/change"
)

// EventType identifies a session lifecycle event.
type EventType string

const (
	EventSessionOpened  EventType = "observe.session.opened"
	EventSessionClosed  EventType = "observe.session.closed"
	EventSessionAborted EventType = "observe.session.aborted"
)

// Event is emitted to hooks when a session opens and when it ends or is
// closed without diffing.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string

	// RootType is the Go type of the observed value.
	RootType string

	// Change is the finished tree. Set only for EventSessionClosed; nil
	// when nothing changed.
	Change *change.Change

	// Duration is the time spent diffing. Set only for EventSessionClosed.
	Duration time.Duration
}

// Hook receives session events for logging, tracing or metrics. Hooks run
// synchronously on the goroutine that owns the session.
type Hook interface {
	OnEvent(event Event)
}

// NoOpHook discards all events.
type NoOpHook struct{}

func (NoOpHook) OnEvent(Event) {}

// MultiHook fans out events to multiple hooks.
type MultiHook struct {
	hooks []Hook
}

// NewMultiHook creates a MultiHook that forwards events to all non-nil
// hooks.
func NewMultiHook(hooks ...Hook) *MultiHook {
	filtered := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return &MultiHook{hooks: filtered}
}

func (m *MultiHook) OnEvent(event Event) {
	for _, h := range m.hooks {
		h.OnEvent(event)
	}
}

// SlogHook emits events to a slog.Logger at the configured level. The
// event type becomes the log message.
type SlogHook struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogHook creates a SlogHook that emits to the given logger.
func NewSlogHook(logger *slog.Logger, level slog.Level) *SlogHook {
	return &SlogHook{logger: logger, level: level}
}

func (h *SlogHook) OnEvent(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("type", event.RootType),
	}
	if event.Type == EventSessionClosed {
		attrs = append(attrs,
			slog.Bool("changed", event.Change != nil),
			slog.Int("leaves", event.Change.Count()),
			slog.Duration("duration", event.Duration),
		)
	}
	h.logger.LogAttrs(context.Background(), h.level, string(event.Type), attrs...)
}
