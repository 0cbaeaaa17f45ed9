package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger(t *testing.T) {
	ctx := context.Background()

	// Test Ctx without a logger in the context
	l1 := Ctx(ctx)
	require.NotNil(t, l1, "Ctx returned nil instead of default logger")
	assert.Equal(t, defaultLogger, l1, "Ctx should return defaultLogger")

	// Create a new logger to test With
	customLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	require.NotEqual(t, defaultLogger, customLogger, "Failed to create a distinct custom logger for testing")

	// Test With and Ctx with a logger in the context
	ctxWithLogger := With(ctx, customLogger)
	l2 := Ctx(ctxWithLogger)
	require.NotNil(t, l2, "Ctx returned nil, expected custom logger")
	assert.Equal(t, customLogger, l2, "Ctx should return customLogger")
}

func TestSetOutput(t *testing.T) {
	prev := defaultLogger
	prevDefault := slog.Default()
	t.Cleanup(func() {
		defaultLogger = prev
		slog.SetDefault(prevDefault)
		SetDefaultLogLevel(slog.LevelInfo)
	})

	var buf bytes.Buffer
	SetOutput(&buf)
	SetDefaultLogLevel(slog.LevelDebug)

	ctx := context.Background()
	Ctx(ctx).DebugContext(ctx, "hello", slog.String("station", "s1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "s1", line["station"])
	assert.Equal(t, "DEBUG", line["level"])

	buf.Reset()
	SetDefaultLogLevel(slog.LevelWarn)
	Ctx(ctx).InfoContext(ctx, "dropped")
	assert.Empty(t, buf.String(), "info should be filtered at warn level")
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mtec.log")
	w, err := FileWriter(path)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("line\n"))
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(b))
}
