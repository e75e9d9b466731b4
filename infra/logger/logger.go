// Package logger adapts zerolog to the core Logger interface.
package logger

import corelogger "github.com/kilianp07/dutysched/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component. The output format follows
// APP_ENV; the level follows SetLevel.
func New(component string) Logger {
	return NewZerologLogger(component)
}
