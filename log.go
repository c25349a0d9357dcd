package coldvault

import (
	"path/filepath"
	"sort"

	"github.com/btcsuite/btclog"
	"github.com/coldvault/coldvault/build"
	"github.com/coldvault/coldvault/keychain"
	"github.com/coldvault/coldvault/vaultcfg"
	"github.com/coldvault/coldvault/walletmgr"
	"github.com/coldvault/coldvault/walletstore"
)

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it will write to the backend. When adding
// new subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
//
// Until SetupLoggers is called the backend writes nowhere.
var (
	logWriter = &build.LogWriter{}

	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = btclog.NewBackend(logWriter)

	// LogRotator is the file output of the backend. It should be closed
	// on application shutdown.
	LogRotator = build.NewRotatingLogWriter()

	vcltLog = build.NewSubLogger("VCLT", backendLog.Logger)
	wmgrLog = build.NewSubLogger(walletmgr.Subsystem, backendLog.Logger)
	wstrLog = build.NewSubLogger(walletstore.Subsystem, backendLog.Logger)
	kchnLog = build.NewSubLogger(keychain.Subsystem, backendLog.Logger)
)

// Initialize package-global logger variables.
func init() {
	walletmgr.UseLogger(wmgrLog)
	walletstore.UseLogger(wstrLog)
	keychain.UseLogger(kchnLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = build.SubLoggers{
	"VCLT":                vcltLog,
	walletmgr.Subsystem:   wmgrLog,
	walletstore.Subsystem: wstrLog,
	keychain.Subsystem:    kchnLog,
}

// Logger returns the logger of the application layer.
func Logger() btclog.Logger {
	return vcltLog
}

// subLoggerManager exposes the subsystem loggers for level parsing.
type subLoggerManager struct{}

// A compile time check to ensure subLoggerManager implements the
// build.LeveledSubLogger interface.
var _ build.LeveledSubLogger = subLoggerManager{}

// SubLoggers returns all currently registered subsystem loggers.
func (subLoggerManager) SubLoggers() build.SubLoggers {
	return subsystemLoggers
}

// SupportedSubsystems returns a sorted string slice of all keys in the
// subsystems map, corresponding to the names of the subsystems.
func (subLoggerManager) SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored.
func (subLoggerManager) SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func (m subLoggerManager) SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		m.SetLogLevel(subsystemID, logLevel)
	}
}

// SupportedSubsystems returns the names of the subsystems that accept an
// individual debug level.
func SupportedSubsystems() []string {
	return subLoggerManager{}.SupportedSubsystems()
}

// SetupLoggers directs the log output to stderr and, unless disabled, to a
// rotating log file below cfg.LogDir, and applies the configured levels.
func SetupLoggers(cfg *Config) error {
	logWriter.Type = build.LogTypeStdErr

	if !cfg.NoLogFile {
		logFile := filepath.Join(cfg.LogDir, vaultcfg.DefaultLogFilename)
		err := LogRotator.InitLogRotator(build.RotatorConfig{
			File:          logFile,
			MaxFileSizeMB: cfg.MaxLogFileSize,
			MaxFiles:      cfg.MaxLogFiles,
		})
		if err != nil {
			return err
		}

		logWriter.Type = build.LogTypeDefault
		logWriter.Rotator = LogRotator
	}

	return build.ParseAndSetDebugLevels(cfg.DebugLevel, subLoggerManager{})
}
