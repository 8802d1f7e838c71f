package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelgate/internal/config"
)

func TestJSONLoggerCarriesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "1.2.3", &buf)
	l.With("component", "gate").Info("hello", "area", "admin")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "hotelgate", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "gate", entry["component"])
	assert.Equal(t, "admin", entry["area"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, "dev", &buf)
	l.Info("quiet")
	assert.Zero(t, buf.Len())

	l.Warn("loud")
	assert.Contains(t, buf.String(), "msg=loud")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
