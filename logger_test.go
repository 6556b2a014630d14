package annstore

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l.WithKey(IndexKey{Source: "m", Purpose: "p", Dim: 3}).LogUpsert(context.Background(), 2, 1, nil)

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"source":"m"`)
	assert.Contains(t, out, `"dim":3`)
	assert.Contains(t, out, `"dropped":1`)
}

func TestLoggerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, nil))

	l.LogSave(context.Background(), "stem", 0, errors.New("disk full"))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), "disk full")

	buf.Reset()
	l.LogSearch(context.Background(), 5, 5, false, nil)
	assert.Empty(t, buf.String(), "debug records are filtered at info level")
}

func TestNoopLoggerDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		NoopLogger().LogGrow(context.Background(), 10, 79)
	})
}
