package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelFiltersAndJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, cleanup, err := New(Config{Level: "warn", Stderr: &buf})
	require.NoError(t, err)

	log.Info("hidden")
	log.Named("loader").Warn("row skipped")
	cleanup()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "loader", entry["logger"])
	assert.Equal(t, "row skipped", entry["message"])
}

func TestNew_WritesRotatingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "medallion.log")
	var buf bytes.Buffer
	log, cleanup, err := New(Config{Encoding: "console", File: path, MaxSizeMB: 1, Stderr: &buf})
	require.NoError(t, err)
	log.Info("pipeline done")
	cleanup()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"pipeline done"`)
	assert.Contains(t, buf.String(), "pipeline done")
	assert.NotContains(t, buf.String(), `"message"`, "console encoding on stderr")
}

func TestNew_Rejects(t *testing.T) {
	t.Parallel()

	_, _, err := New(Config{Level: "loud"})
	assert.Error(t, err)
	_, _, err = New(Config{Encoding: "xml"})
	assert.Error(t, err)
}
