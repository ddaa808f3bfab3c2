package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers a panic and logs it with the panic value, the
// full stack trace, and context about where it happened.
//
// Call it in a defer at the top of goroutines that must not take the
// process down:
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "certificate watcher")
//	    // ... code that might panic
//	}()
//
// The panic is NOT re-raised; the goroutine ends normally. That can
// leave state half-updated, so reserve it for supervisory loops that
// are safe to lose.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
