package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", WithColor("never"))

	l.Debugf("lock %s acquired", "execution-plan:1")
	l.Infof("world %s registered", "w1")
	assert.Empty(t, buf.String())

	l.Warnf("world %s is stale", "w2")
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "world w2 is stale")
}

func TestErrorAlwaysLogged(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "error", WithColor("never"))

	l.Warnf("sweep skipped")
	l.Errorf("invalidate %s failed", "w3")

	out := buf.String()
	assert.NotContains(t, out, "sweep skipped")
	assert.Contains(t, out, "[ERROR]")
	assert.Contains(t, out, "invalidate w3 failed")
}

func TestColorOffProducesPlainBrackets(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug", WithColor("never"))

	l.Infof("sweep finished")
	line := buf.String()
	assert.True(t, strings.Contains(line, "[INFO] sweep finished"))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Infof("no-op") })
}
