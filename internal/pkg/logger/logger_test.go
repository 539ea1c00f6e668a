package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fed_comment_server/config"
)

func TestBuild_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := build(&buf, config.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	log.Info("activity applied")
	log.Debug("should be filtered")
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "activity applied", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestBuild_InvalidLevel(t *testing.T) {
	_, err := build(&bytes.Buffer{}, config.LogConfig{Level: "verbose"})
	assert.Error(t, err)
}

func TestBuild_DefaultLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := build(&buf, config.LogConfig{Format: "console"})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Warn("shown")
	require.NoError(t, log.Sync())

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
