package people

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Logging integration.

type log_Logger interface {
	Output(calldepth int, s string) error
}

var (
	globalLogger log_Logger
	globalDebug  bool
	globalMutex  sync.Mutex
)

// SetLogger sets the logger used by this package. A nil logger
// disables logging.
func SetLogger(logger log_Logger) {
	globalMutex.Lock()
	globalLogger = logger
	globalMutex.Unlock()
}

// SetDebug enables or disables debug messages.
func SetDebug(debug bool) {
	globalMutex.Lock()
	globalDebug = debug
	globalMutex.Unlock()
}

func logf(format string, args ...interface{}) {
	globalMutex.Lock()
	logger := globalLogger
	globalMutex.Unlock()
	if logger != nil {
		logger.Output(2, fmt.Sprintf("[people] "+format, args...))
	}
}

func debugf(format string, args ...interface{}) {
	globalMutex.Lock()
	logger, debug := globalLogger, globalDebug
	globalMutex.Unlock()
	if debug && logger != nil {
		logger.Output(2, fmt.Sprintf("[people] "+format, args...))
	}
}
