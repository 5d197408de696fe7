package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf, ServiceName: "assistant-test"})

	ctx := ContextWithRequestID(context.Background(), "req-1")
	logger.WithContext(ctx).WithOperation("chat").Info().Str("source", "ai").Msg("answered")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "assistant-test", entry["service"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "chat", entry["operation"])
	assert.Equal(t, "ai", entry["source"])
	assert.Equal(t, "answered", entry["message"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("DEBUG").String())
	assert.Equal(t, "warn", parseLevel("warning").String())
	assert.Equal(t, "info", parseLevel("bogus").String())
}

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.RecordReply("fallback", "generic")
	m.RecordReply("ai", "")
	m.RecordPrimary("groq", "success", 120*time.Millisecond)
	m.RecordCache("hit")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatRequests.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatRequests.WithLabelValues("ai")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbackKinds.WithLabelValues("generic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.primaryAttempts.WithLabelValues("groq", "success")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "assistant_chat_requests_total")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordReply("ai", "")
		m.RecordPrimary("groq", "error", time.Second)
		m.RecordCache("miss")
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
