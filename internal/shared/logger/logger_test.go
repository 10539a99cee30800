package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"linkvault/internal/shared/contextkeys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerInterface_Contract(t *testing.T) {
	var _ Logger = NewLogger()
	var _ Logger = NewLoggerWithConfig("info", "json")
}

func TestLoggerWithOutput_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithOutput("debug", "json", &buf)
	log.WithComponent("session-store").Info("session restored")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "session restored", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "session-store", line["component"])
	assert.NotEmpty(t, line["timestamp"])
}

func TestLoggerWithOutput_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithOutput("warn", "json", &buf)
	log.Debug("hidden")
	log.Info("hidden too")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestLogrusLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithOutput("info", "json", &buf)

	ctx := context.WithValue(context.Background(), contextkeys.UserIDKey, "user-1")
	ctx = context.WithValue(ctx, contextkeys.RequestIDKey, "req-9")
	log.WithContext(ctx).Info("handled")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "user-1", line["user_id"])
	assert.Equal(t, "req-9", line["request_id"])
}

func TestLogrusLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithOutput("info", "json", &buf)
	log.WithFields(map[string]interface{}{"owner_id": "u1"}).Infof("refreshed %d rows", 3)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "u1", line["owner_id"])
	assert.Equal(t, "refreshed 3 rows", line["message"])
}
