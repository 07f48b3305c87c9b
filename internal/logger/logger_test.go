package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{Level: "debug", Format: "json", Output: buf, ServiceName: "threatforge-test"})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out))
	return out
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())
	ctx = SetJobID(ctx, "job-1")
	ctx = SetProvider(ctx, "mock")

	CtxInfo(ctx, "checkpoint %d", 10)

	line := decodeLine(t, &buf)
	assert.Equal(t, "checkpoint 10", line["message"])
	assert.Equal(t, "job-1", line[FieldJobID])
	assert.Equal(t, "mock", line[FieldProvider])
	assert.Equal(t, "threatforge-test", line["service"])
	assert.Equal(t, "job-1", GetJobID(ctx))
}

func TestEntryMetricFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())

	With(Fields{FieldCount: 3}).WithProgress(50).WithStatus("processing").Info(ctx, "progress")

	line := decodeLine(t, &buf)
	assert.EqualValues(t, 3, line[FieldCount])
	assert.EqualValues(t, 50, line[FieldProgress])
	assert.Equal(t, "processing", line[FieldStatus])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "warn", Format: "json", Output: &buf})
	ctx := l.WithContext(context.Background())

	CtxInfo(ctx, "hidden")
	assert.Zero(t, buf.Len())

	CtxWarn(ctx, "shown")
	assert.NotZero(t, buf.Len())
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
	assert.Empty(t, GetRequestID(context.Background()))
}
