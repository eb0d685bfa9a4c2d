package wurstminebot

import (
	"fmt"
	"sync"

	"github.com/wurstmineberg/wurstminebot/minecraft"
	"github.com/wurstmineberg/wurstminebot/people"
	"github.com/wurstmineberg/wurstminebot/tail"
	"github.com/wurstmineberg/wurstminebot/textsub"
	"github.com/wurstmineberg/wurstminebot/twitter"
)

// ---------------------------------------------------------------------------
// Logging integration.

// Avoid importing the log type information unnecessarily.  There's a small cost
// associated with using an interface rather than the type.  Depending on how
// often the logger is plugged in, it would be worth using the type instead.
type log_Logger interface {
	Output(calldepth int, s string) error
}

var (
	globalLogger log_Logger
	globalDebug  bool
	globalMutex  sync.Mutex
)

// SetLogger sets the logger used by the bot and all of its packages.
// A nil logger disables logging.
func SetLogger(logger log_Logger) {
	globalMutex.Lock()
	globalLogger = logger
	globalMutex.Unlock()
	people.SetLogger(logger)
	textsub.SetLogger(logger)
	tail.SetLogger(logger)
	minecraft.SetLogger(logger)
	twitter.SetLogger(logger)
}

// SetDebug defines whether debugging messages are logged.
func SetDebug(debug bool) {
	globalMutex.Lock()
	globalDebug = debug
	globalMutex.Unlock()
	people.SetDebug(debug)
	textsub.SetDebug(debug)
	tail.SetDebug(debug)
	minecraft.SetDebug(debug)
	twitter.SetDebug(debug)
}

func logf(format string, args ...interface{}) {
	globalMutex.Lock()
	logger := globalLogger
	globalMutex.Unlock()
	if logger != nil {
		logger.Output(2, fmt.Sprintf(format, args...))
	}
}

func debugf(format string, args ...interface{}) {
	globalMutex.Lock()
	logger, debug := globalLogger, globalDebug
	globalMutex.Unlock()
	if debug && logger != nil {
		logger.Output(2, fmt.Sprintf(format, args...))
	}
}
