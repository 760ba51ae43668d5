package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerRoundTrip(t *testing.T) {
	lg := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	base := context.Background()

	ctx := ContextWithLogger(base, lg)
	assert.Same(t, lg, LoggerFromContext(ctx))
	assert.Equal(t, base, ContextWithLogger(base, nil))
	assert.NotNil(t, LoggerFromContext(base))
	//nolint:staticcheck // nil context is handled explicitly
	assert.NotNil(t, LoggerFromContext(nil))
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx = WithFields(ctx, "conversation_id", "c1")
	LoggerFromContext(ctx).Info("turn")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "c1", line["conversation_id"])

	assert.Equal(t, ctx, WithFields(ctx))
}

func TestRequestID(t *testing.T) {
	base := context.Background()
	assert.Equal(t, base, ContextWithRequestID(base, ""))
	assert.Empty(t, RequestIDFromContext(base))

	ctx := ContextWithRequestID(base, "01HZX")
	assert.Equal(t, "01HZX", RequestIDFromContext(ctx))
}
