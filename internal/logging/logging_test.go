// internal/logging/logging_test.go
package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONWithService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regmapd.log")

	log, err := New(Config{Level: "INFO", Output: path}, "regmapd")
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("device built")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(data, &line), "exactly one json line expected: %s", data)
	assert.Equal(t, "device built", line["msg"])
	assert.Equal(t, "regmapd", line["service"])
	assert.Contains(t, line, "time")
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(Config{Level: "loud"}, "")
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"}, "")
	assert.Error(t, err)
}

func TestNew_Console(t *testing.T) {
	log, err := New(Config{Format: "console", Level: "debug", Output: "stdout"}, "")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(-1))
}
