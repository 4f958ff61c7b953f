package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/config"
)

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, closer := NewLogger(config.LoggerConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1})

	logger.Info("dataset restored", "records", 3)
	logger.Debug("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "dataset restored", entry["msg"])
	assert.EqualValues(t, 3, entry["records"])
}

func TestNewLogger_NoFile(t *testing.T) {
	_, closer := NewLogger(config.LoggerConfig{Level: "warn", Format: "text"})
	assert.NoError(t, closer.Close())
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestSpan(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "GET /api/summary")
	_, child := StartSpan(ctx, "analytics.summary")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.Same(t, parent, GetSpan(ctx))

	child.SetTag("records", "10")
	child.SetError(errors.New("boom"))

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	child.End(ctx, logger)

	first := child.Duration
	time.Sleep(time.Millisecond)
	child.Finish()
	assert.Equal(t, first, child.Duration, "Finish is idempotent")

	var entry struct {
		Level string         `json:"level"`
		Span  map[string]any `json:"span"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "analytics.summary", entry.Span["operation"])
	assert.Equal(t, "boom", entry.Span["error"])
	assert.Equal(t, "10", entry.Span["records"])
}

func TestMetrics(t *testing.T) {
	SetDatasetRecords(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(datasetRecords))

	before := testutil.ToFloat64(storageWritesTotal.WithLabelValues("compressed"))
	CountStorageWrite("compressed")
	assert.Equal(t, before+1, testutil.ToFloat64(storageWritesTotal.WithLabelValues("compressed")))

	failed := testutil.ToFloat64(classifierLoadsTotal.WithLabelValues("error"))
	CountClassifierLoad(false)
	assert.Equal(t, failed+1, testutil.ToFloat64(classifierLoadsTotal.WithLabelValues("error")))

	requests := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "GET /health", "200"))
	ObserveRequest("GET", "GET /health", 200, 5*time.Millisecond)
	assert.Equal(t, requests+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "GET /health", "200")))

	stop := TimeAggregation("summary")
	stop()
	assert.Positive(t, testutil.CollectAndCount(aggregationDuration, "sales_aggregation_duration_seconds"))
}
