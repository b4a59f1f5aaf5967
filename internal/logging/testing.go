package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// TestLogger captures JSON log lines for assertions.
type TestLogger struct {
	zerolog.Logger
	mu  sync.Mutex
	buf bytes.Buffer
	t   testing.TB
}

type lockedWriter struct{ tl *TestLogger }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.tl.mu.Lock()
	defer w.tl.mu.Unlock()
	return w.tl.buf.Write(p)
}

// NewTestLogger returns a debug-level logger whose output is kept in memory.
func NewTestLogger(t testing.TB) *TestLogger {
	tl := &TestLogger{t: t}
	tl.Logger = zerolog.New(lockedWriter{tl: tl}).Level(zerolog.DebugLevel)
	return tl
}

func (tl *TestLogger) Output() string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buf.String()
}

func (tl *TestLogger) Contains(s string) bool {
	return strings.Contains(tl.Output(), s)
}

func (tl *TestLogger) AssertContains(s string) {
	tl.t.Helper()
	if !tl.Contains(s) {
		tl.t.Errorf("expected log output to contain %q, got:\n%s", s, tl.Output())
	}
}
