package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("returns embedded logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		ctx := WithLogger(context.Background(), logger)

		FromContext(ctx).Info("hello")
		assert.Contains(t, buf.String(), "hello")
	})

	t.Run("falls back to default logger", func(t *testing.T) {
		require.Same(t, slog.Default(), FromContext(context.Background()))
	})

	t.Run("discard logger is usable", func(t *testing.T) {
		ctx := Discard(context.Background())
		require.NotPanics(t, func() { FromContext(ctx).Error("dropped") })
	})
}
