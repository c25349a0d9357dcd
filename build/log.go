package build

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/btclog"
)

// LogType is an indicating the type of logging the binary was started with.
type LogType byte

const (
	// LogTypeNone indicates no logging.
	LogTypeNone LogType = iota

	// LogTypeStdErr all logging is written directly to stderr.
	LogTypeStdErr

	// LogTypeDefault logs to both stderr and the log rotator, if one has
	// been attached.
	LogTypeDefault
)

// String returns a human readable identifier for the logging type.
func (t LogType) String() string {
	switch t {
	case LogTypeNone:
		return "none"
	case LogTypeStdErr:
		return "stderr"
	case LogTypeDefault:
		return "default"
	default:
		return "unknown"
	}
}

// LogWriter is the io.Writer behind the shared btclog backend. Log lines go
// to stderr so that stdout stays reserved for command output, and are
// mirrored into the rotating log file once one has been attached.
type LogWriter struct {
	// Type selects where the log lines end up.
	Type LogType

	// Rotator is the file output. It only needs to be set when Type is
	// LogTypeDefault.
	Rotator io.Writer
}

// Write writes the byte slice to the configured outputs.
func (w *LogWriter) Write(b []byte) (int, error) {
	switch w.Type {
	case LogTypeNone:
		return len(b), nil

	case LogTypeStdErr:
		_, _ = os.Stderr.Write(b)

	case LogTypeDefault:
		_, _ = os.Stderr.Write(b)
		if w.Rotator != nil {
			_, _ = w.Rotator.Write(b)
		}
	}

	return len(b), nil
}

// NewSubLogger constructs a new subsystem log from the shared backend. If no
// constructor is given, logging for the subsystem is disabled.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	if genSubLogger == nil {
		return btclog.Disabled
	}

	return genSubLogger(subsystem)
}

// SubLoggers is a type that holds a map of subsystem loggers keyed by their
// subsystem name.
type SubLoggers map[string]btclog.Logger

// LeveledSubLogger provides the ability to retrieve the subsystem loggers of
// a logger and set their log levels individually or all at once.
type LeveledSubLogger interface {
	// SubLoggers returns the map of all registered subsystem loggers.
	SubLoggers() SubLoggers

	// SupportedSubsystems returns a slice of strings containing the names
	// of the supported subsystems. Should ideally correspond to the keys
	// of the subsystem logger map and be sorted.
	SupportedSubsystems() []string

	// SetLogLevel assigns an individual subsystem logger a new log level.
	SetLogLevel(subsystemID string, logLevel string)

	// SetLogLevels assigns all subsystem loggers the same new log level.
	SetLogLevels(logLevel string)
}

// ParseAndSetDebugLevels applies a debug level string to logger. It is
// either a single level for every subsystem, or a comma separated list of
// subsystem=level pairs optionally led by a global level, e.g.
// "info,WMGR=debug,WSTR=trace".
func ParseAndSetDebugLevels(levels string, logger LeveledSubLogger) error {
	entries := strings.Split(levels, ",")

	// A leading entry without a subsystem sets the default for all.
	if !strings.Contains(entries[0], "=") {
		if !validLogLevel(entries[0]) {
			return fmt.Errorf("invalid debug level %q, must be one "+
				"of %v", entries[0], logLevels)
		}

		logger.SetLogLevels(entries[0])
		entries = entries[1:]
	}

	for _, entry := range entries {
		subsystem, level, ok := strings.Cut(entry, "=")
		if !ok || strings.Contains(level, "=") {
			return fmt.Errorf("invalid debug level %q, use "+
				"<subsystem>=<level>", entry)
		}

		if _, known := logger.SubLoggers()[subsystem]; !known {
			return fmt.Errorf("unknown subsystem %q, supported "+
				"subsystems are %v", subsystem,
				logger.SupportedSubsystems())
		}

		if !validLogLevel(level) {
			return fmt.Errorf("invalid debug level %q for %v, must "+
				"be one of %v", level, subsystem, logLevels)
		}

		logger.SetLogLevel(subsystem, level)
	}

	return nil
}

// logLevels lists the accepted debug levels, most verbose first.
var logLevels = []string{
	"trace", "debug", "info", "warn", "error", "critical", "off",
}

// Levels returns the accepted debug levels, most verbose first.
func Levels() []string {
	return append([]string(nil), logLevels...)
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	for _, l := range logLevels {
		if l == logLevel {
			return true
		}
	}

	return false
}
