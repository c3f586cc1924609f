package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentHTTP})

	logger.With(FieldRequestID, "req_1").WithComponent(ComponentBudget).Info("hello")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, ComponentBudget, recs[0][FieldComponent])
	assert.Equal(t, "req_1", recs[0][FieldRequestID])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf}).With(FieldRequestID, "req_abc")

	ctx := NewContext(context.Background(), logger)
	FromContext(ctx).InfoContext(ctx, "inside")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "req_abc", recs[0][FieldRequestID])
}

func TestLogHTTPEndLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := New(Config{Format: "json", Output: &buf})
		r := httptest.NewRequest(http.MethodGet, "/api/budget?month=6", nil)

		LogHTTPEnd(context.Background(), logger, r, tt.status, 12, "10.0.0.1")

		recs := decodeLines(t, &buf)
		require.Len(t, recs, 1)
		assert.Equal(t, tt.level, recs[0]["level"], "status %d", tt.status)
		assert.Equal(t, "/api/budget", recs[0][FieldPath])
		assert.Equal(t, "10.0.0.1", recs[0][FieldClientIP])
	}
}

func TestFromContextFallback(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	assert.Equal(t, ComponentApp, logger.Component())
	// Must not panic when derived.
	logger.With("k", "v").WithComponent(ComponentWorker).Debug("noop")
}
