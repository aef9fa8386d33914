package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_InfoFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "text")
	logger.Debug("debug msg")
	logger.Info("info msg", "session_id", "s1")

	out := buf.String()
	assert.NotContains(t, out, "debug msg")
	assert.Contains(t, out, "info msg")
	assert.Contains(t, out, "session_id=s1")
	assert.Contains(t, out, "service=combatd")
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "json").Debug("turn resolved", "round", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "turn resolved", line["msg"])
	assert.Equal(t, float64(2), line["round"])
	assert.Regexp(t, `Z$`, line["time"])
}
