package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditFileKeepsWarningsOnly(t *testing.T) {
	var stdout bytes.Buffer
	audit := filepath.Join(t.TempDir(), "logs", "audit.log")

	log, closer, err := New(Options{Level: "debug", Format: "text", AuditFile: audit, Stdout: &stdout})
	require.NoError(t, err)

	log = log.With("component", "engine")
	log.Debug("searching", "query", "Pixel 8")
	log.Warn("retrying", "attempt", 2)
	log.Error("exhausted", "attempts", 3)
	require.NoError(t, closer.Close())

	assert.Equal(t, 3, strings.Count(stdout.String(), "component=engine"))

	data, err := os.ReadFile(audit)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msg":"retrying"`)
	assert.Contains(t, lines[0], `"component":"engine"`)
	assert.Contains(t, lines[1], `"level":"ERROR"`)
}

func TestNewWithoutAudit(t *testing.T) {
	var stdout bytes.Buffer
	log, closer, err := New(Options{Level: "warn", Stdout: &stdout})
	require.NoError(t, err)
	defer closer.Close()

	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), `"msg":"shown"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
