package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/moneyledger/pkg/logger"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestNewWithOptions_ProductionIsJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOptions(&buf, logger.Options{Env: "production"})

	log.Debug("hidden")
	assert.Zero(t, buf.Len())

	log.Info("posted", "amount", "12.500000")
	line := decodeLine(t, &buf)
	assert.Equal(t, "posted", line["msg"])
	assert.Equal(t, "12.500000", line["amount"])
	assert.Regexp(t, `^logger_test\.go:\d+$`, line["source"])

	_, err := time.Parse(time.RFC3339, line["time"].(string))
	assert.NoError(t, err)
}

func TestNewWithOptions_LevelOverride(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOptions(&buf, logger.Options{Env: "development", Format: "json", Level: "warn"})

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.Equal(t, "WARN", decodeLine(t, &buf)["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logger.ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("verbose"))
}

func TestWithContext_AddsRequestAndUser(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithOptions(&buf, logger.Options{Env: "test", Format: "json"})

	ctx := context.WithValue(context.Background(), logger.RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, logger.UserIDKey, "user-1")

	log.WithContext(ctx).Component("scheduler").WithError(errors.New("boom")).Error("sync failed")
	line := decodeLine(t, &buf)
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "user-1", line["user_id"])
	assert.Equal(t, "scheduler", line["component"])
	assert.Equal(t, "boom", line["error"])

	assert.Same(t, log, log.WithContext(context.Background()))
	assert.Same(t, log, log.WithError(nil))
}
