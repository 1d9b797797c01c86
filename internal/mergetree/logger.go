package mergetree

import (
	"fmt"
	"log"
	"os"
)

// Logger defines an interface for writing log messages, grounded on
// pebble's internal/base.Logger: background compaction, part removal,
// and ALTER commits log through this interface rather than calling the
// stdlib log package directly, so a caller embedding this package can
// redirect its output (spec.md's ambient logging stack).
type Logger interface {
	Infof(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DefaultLogger logs to the Go stdlib log package.
type DefaultLogger struct{}

// Infof implements Logger.
func (DefaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Fatalf implements Logger.
func (DefaultLogger) Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
	os.Exit(1)
}
