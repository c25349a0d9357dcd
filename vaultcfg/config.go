package vaultcfg

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

const (
	// DefaultConfigFilename is the name of the config file looked up in
	// the vault directory.
	DefaultConfigFilename = "coldvault.conf"

	// DefaultStorageDirname is the directory below the vault directory
	// holding the wallet file and backups.
	DefaultStorageDirname = "wallets"

	// DefaultLogDirname is the directory below the vault directory holding
	// the rotated log files.
	DefaultLogDirname = "logs"

	// DefaultLogFilename is the name of the current log file.
	DefaultLogFilename = "coldvault.log"
)

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
