package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLineFormat(t *testing.T) {
	buf := capture(t, LevelInfo)

	Info("feed refreshed", "count", 3, "source", "meetup group")
	line := buf.String()

	assert.Contains(t, line, " [INFO] feed refreshed")
	assert.Contains(t, line, " count=3")
	assert.Contains(t, line, ` source="meetup group"`)
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestErrorPrependsErr(t *testing.T) {
	buf := capture(t, LevelInfo)

	Error("fetch failed", errors.New("timeout"), "id", "x")
	assert.Contains(t, buf.String(), "[ERROR] fetch failed err=timeout id=x")
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error", nil)

	out := buf.String()
	assert.NotContains(t, out, "[DEBUG]")
	assert.NotContains(t, out, "[INFO]")
	assert.Contains(t, out, "[WARN] warn")
	assert.Contains(t, out, "[ERROR] error")
}

func TestOddKVIgnored(t *testing.T) {
	buf := capture(t, LevelDebug)

	Debug("odd", "a", 1, 42, "skipped", "b")
	out := buf.String()
	assert.Contains(t, out, "a=1")
	assert.NotContains(t, out, "skipped")
	assert.NotContains(t, out, "b=")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" Warn "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
}
