package goroutine

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
)

// stackBufferSize is the buffer size for stack trace collection
const stackBufferSize = 4096

// Recover recovers from panics in goroutines and logs them. Falls back to
// stderr when logger is nil so the panic is never silently lost.
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		buf := make([]byte, stackBufferSize)
		n := runtime.Stack(buf, false)

		if logger != nil {
			logger.Errorw("Goroutine panic recovered",
				"goroutine", name,
				"panic", r,
				"stack", string(buf[:n]))
		} else {
			fmt.Fprintf(os.Stderr, "PANIC in goroutine %s (no logger): %v\n%s\n",
				name, r, string(buf[:n]))
		}
	}
}

// Go runs fn on a new goroutine with panic recovery
func Go(name string, logger *zap.SugaredLogger, fn func()) {
	go func() {
		defer Recover(name, logger)
		fn()
	}()
}
