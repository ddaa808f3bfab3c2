package observability

import (
	"bytes"
	"strings"
	"testing"
)

func TestRecoverPanic_LogsAndSwallows(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	func() {
		defer RecoverPanic(logger, "test goroutine")
		panic("boom")
	}()

	out := buf.String()
	if !strings.Contains(out, "PANIC recovered") {
		t.Errorf("Expected panic log entry, got %q", out)
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("Expected panic value in log, got %q", out)
	}
	if !strings.Contains(out, "test goroutine") {
		t.Errorf("Expected context in log, got %q", out)
	}
}

func TestRecoverPanic_NoPanicNoLog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	func() {
		defer RecoverPanic(logger, "quiet path")
	}()

	if buf.Len() > 0 {
		t.Errorf("Expected no log output without a panic, got %q", buf.String())
	}
}
