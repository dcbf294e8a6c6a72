package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Timestamp constants for test data.
const (
	tsEarly   = "2024-01-01T10:00:00Z"
	tsEarlyS1 = "2024-01-01T10:00:01Z"
	tsLate    = "2024-01-01T10:01:00Z"
)

var testJan15_1030UTC = time.Date(
	2024, 1, 15, 10, 30, 0, 0, time.UTC,
)

func createTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func mkdirAll(t *testing.T, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// captureLog returns a logger that records entries at debug
// level and above, and the observer to assert on them.
func captureLog(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func assertLogContains(
	t *testing.T, logs *observer.ObservedLogs, substrs ...string,
) {
	t.Helper()
	for _, s := range substrs {
		if logs.FilterMessageSnippet(s).Len() == 0 {
			t.Errorf("log missing %q, got: %v", s, messages(logs))
		}
	}
}

func assertLogNotContains(
	t *testing.T, logs *observer.ObservedLogs, substrs ...string,
) {
	t.Helper()
	for _, s := range substrs {
		if logs.FilterMessageSnippet(s).Len() > 0 {
			t.Errorf(
				"log should not contain %q, got: %v",
				s, messages(logs),
			)
		}
	}
}

func messages(logs *observer.ObservedLogs) string {
	var msgs []string
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}
