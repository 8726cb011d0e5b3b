package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContextAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := defaultLogger
	defaultLogger = slog.New(newHandler(&buf, "json", slog.LevelDebug))
	t.Cleanup(func() { defaultLogger = prev })

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithVideoID(ctx, "vid-9")
	InfoContext(ctx, "claimed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "claimed", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "vid-9", line["video_id"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseLevel(in))
		})
	}
}

func TestInitWritesRotatingFile(t *testing.T) {
	prev, prevDefault := defaultLogger, slog.Default()
	t.Cleanup(func() {
		defaultLogger = prev
		slog.SetDefault(prevDefault)
	})

	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = filepath.Join(t.TempDir(), "logs", "worker.log")

	require.NoError(t, Init(cfg))
	Info("hello")
	assert.FileExists(t, cfg.FilePath)
}
