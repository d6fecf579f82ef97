package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func captureGlobalLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func traceQuery() (string, int64) {
	return "UPDATE parking_slots SET occupied = true WHERE id = 1", 1
}

func TestTraceIgnoresRecordNotFoundByDefault(t *testing.T) {
	logs := captureGlobalLogs(t)
	l := NewGormLogger(DefaultGormLoggerConfig())

	l.Trace(context.Background(), time.Now(), traceQuery, gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	l.Trace(context.Background(), time.Now(), traceQuery, errors.New("connection reset"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "db_query", entry.Message)
	assert.Equal(t, zap.ErrorLevel, entry.Level)
}

func TestTraceFlagsSlowQueries(t *testing.T) {
	logs := captureGlobalLogs(t)
	l := NewGormLogger(DefaultGormLoggerConfig())

	l.Trace(context.Background(), time.Now().Add(-250*time.Millisecond), traceQuery, nil)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "db_query", entry.Message)
	assert.Equal(t, zap.WarnLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, true, fields["slow"])
	assert.Equal(t, "UPDATE", fields["operation"])
}
