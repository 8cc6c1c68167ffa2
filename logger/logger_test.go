package logger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDetails_AddsContextIDs(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-1")
	ctx = WithSessionID(ctx, "sess-1")

	d := Details(ctx, map[string]interface{}{"stage": "validating"})

	assert.Equal(t, "req-1", d["correlation_id"])
	assert.Equal(t, "sess-1", d["session_id"])
	assert.Equal(t, "validating", d["stage"])
}

func TestDetails_EmptyContext(t *testing.T) {
	d := Details(context.Background(), nil)
	assert.Empty(t, d)
	assert.Equal(t, "", CorrelationID(context.Background()))
	assert.Equal(t, "", SessionID(context.Background()))
}

func TestZapLogger_PromotesIDs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Error("chat", "turn failed", map[string]interface{}{
		"correlation_id": "req-9",
		"session_id":     "abc",
		"error":          errors.New("boom"),
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "chat", fields["module"])
	assert.Equal(t, "req-9", fields["correlation_id"])
	assert.Equal(t, "abc", fields["session_id"])
	assert.Equal(t, "boom", fields["error"])
	details, ok := fields["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "boom", details["error"])
	assert.NotContains(t, details, "correlation_id")
}

func TestNewZapLogger_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := NewZapLogger(path, true)

	l.Info("server", "started", map[string]interface{}{"port": "8000"})
	l.Debug("server", "not written to file", nil)
	_ = l.Sync()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 1)
	assert.Equal(t, "started", lines[0]["message"])
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "server", lines[0]["module"])
}
