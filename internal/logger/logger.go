package logger

import (
	"sync"

	"go.uber.org/zap"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
	initErr      error
)

// Init builds the process logger on first call. When file is non-empty a JSON
// copy of every entry is appended to it. Later calls return the first logger.
func Init(level, file string) (*Logger, error) {
	once.Do(func() {
		globalLogger, initErr = newZapLogger(level, file)
	})
	return globalLogger, initErr
}

// Nop discards everything. Used by tests and optional collaborators.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}
