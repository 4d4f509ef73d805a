package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn", "json")

	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Warn().Str("sheet", "2100001_1").Msg("Sheet skipped")
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "2100001_1", line["sheet"])
	assert.Contains(t, line, "time")
}

func TestNewWithWriterUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "loud", "json")
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info", "console")
	l.Info().Msg("API is running")
	assert.Contains(t, buf.String(), "API is running")
	assert.NotContains(t, buf.String(), "{")
}
