package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgecomet/apilog/internal/common/configtypes"
	"github.com/edgecomet/apilog/internal/common/logger"
)

func decodeConsoleLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	return entry
}

func TestConsoleSink_RequestEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(logger.NewEventWriterLogger(configtypes.LogFormatJSON, &buf))

	require.NoError(t, sink.Emit(testRequestEvent()))

	entry := decodeConsoleLine(t, &buf)
	assert.Equal(t, "AddUserRequest", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "request", entry["direction"])
	assert.Equal(t, "r1", entry["request_id"])
	assert.Equal(t, "/users", entry["path"])
	assert.NotContains(t, entry, "status_code")
}

func TestConsoleSink_ResponseLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "info"},
		{304, "info"},
		{409, "warn"},
		{503, "error"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		sink := NewConsoleSink(logger.NewEventWriterLogger(configtypes.LogFormatJSON, &buf))

		require.NoError(t, sink.Emit(testResponseEvent(tt.status)))

		entry := decodeConsoleLine(t, &buf)
		assert.Equal(t, tt.level, entry["level"], "status %d", tt.status)
		assert.Equal(t, float64(tt.status), entry["status_code"])
	}
}

func TestConsoleSink_DisabledLevel(t *testing.T) {
	sink := NewConsoleSink(zap.NewNop())
	assert.NoError(t, sink.Emit(testResponseEvent(500)))
	assert.NoError(t, sink.Close())
}
