package testutil

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceGenerator(t *testing.T) {
	gen := NewSequenceGenerator("s")
	assert.Equal(t, "s-1", gen.Generate())
	assert.Equal(t, "s-2", gen.Generate())

	assert.Equal(t, "session-1", NewSequenceGenerator("").Generate())
}

func TestCaptureLogger(t *testing.T) {
	logger, buf := CaptureLogger()
	logger.Debug("hello", "k", 1)
	assert.Contains(t, buf.String(), "msg=hello k=1")

	DiscardLogger().Log(context.Background(), slog.LevelError, "dropped")
}
