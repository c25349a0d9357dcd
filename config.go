package coldvault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/coldvault/coldvault/build"
	"github.com/coldvault/coldvault/vaultcfg"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultLogLevel = "info"
)

var (
	// DefaultVaultDir is the default directory for all vault data.
	DefaultVaultDir = btcutil.AppDataDir("coldvault", false)

	// DefaultConfigFile is the default full path of the config file.
	DefaultConfigFile = filepath.Join(
		DefaultVaultDir, vaultcfg.DefaultConfigFilename,
	)

	defaultStorageDir = filepath.Join(
		DefaultVaultDir, vaultcfg.DefaultStorageDirname,
	)
	defaultLogDir = filepath.Join(DefaultVaultDir, vaultcfg.DefaultLogDirname)
)

// Config defines the configuration options for the vault.
//
// See DefaultConfig for default values.
//
//nolint:lll
type Config struct {
	VaultDir   string `long:"vaultdir" description:"The base directory that contains the vault's data, logs, configuration file, etc."`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`

	LogDir         string `long:"logdir" description:"Directory to log output."`
	NoLogFile      bool   `long:"nologfile" description:"Only log to stderr."`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	DebugLevel     string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	Storage *vaultcfg.Storage `group:"Storage" namespace:"storage"`
	Crypto  *vaultcfg.Crypto  `group:"Crypto" namespace:"crypto"`
	Fees    *vaultcfg.Fees    `group:"Fees" namespace:"fees"`
	Wallet  *vaultcfg.Wallet  `group:"Wallet" namespace:"wallet"`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	storage := vaultcfg.DefaultStorage()
	storage.Dir = defaultStorageDir

	return Config{
		VaultDir:       DefaultVaultDir,
		ConfigFile:     DefaultConfigFile,
		LogDir:         defaultLogDir,
		MaxLogFiles:    build.DefaultMaxLogFiles,
		MaxLogFileSize: build.DefaultMaxLogFileSize,
		DebugLevel:     defaultLogLevel,
		Storage:        storage,
		Crypto:         vaultcfg.DefaultCrypto(),
		Fees:           &vaultcfg.Fees{},
		Wallet:         vaultcfg.DefaultWallet(),
	}
}

// LoadConfig initializes and parses the config using a config file and the
// given command line arguments.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the arguments to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse the arguments again and overwrite any specified options
func LoadConfig(args []string) (*Config, error) {
	// Pre-parse the arguments to pick up an alternative config file.
	preCfg := DefaultConfig()
	if _, err := flags.ParseArgs(&preCfg, args); err != nil {
		return nil, err
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their vault dir, then we should assume they intend to use
	// the config file within it.
	configFileDir := vaultcfg.CleanAndExpandPath(preCfg.VaultDir)
	configFilePath := vaultcfg.CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultVaultDir {
		if configFilePath == DefaultConfigFile {
			configFilePath = filepath.Join(
				configFileDir, vaultcfg.DefaultConfigFilename,
			)
		}
	}

	// Next, load any additional configuration options from the file.
	var configFileError error
	cfg := preCfg
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the arguments again to ensure they take precedence.
	if _, err := flags.ParseArgs(&cfg, args); err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	cleanCfg, err := ValidateConfig(cfg)
	if err != nil {
		return nil, err
	}

	// Warn about missing config file only after all other configuration is
	// done.
	if configFileError != nil && !errors.Is(configFileError, os.ErrNotExist) {
		vcltLog.Warnf("%v", configFileError)
	}

	return cleanCfg, nil
}

// ValidateConfig checks the given configuration to be sane. All file system
// paths are normalized. The cleaned up config is returned on success.
func ValidateConfig(cfg Config) (*Config, error) {
	// If the provided vault directory is not the default, we'll modify
	// the path to all of the files and directories that will live within
	// it, unless they were set explicitly.
	vaultDir := vaultcfg.CleanAndExpandPath(cfg.VaultDir)
	if vaultDir != DefaultVaultDir {
		if cfg.Storage.Dir == defaultStorageDir {
			cfg.Storage.Dir = filepath.Join(
				vaultDir, vaultcfg.DefaultStorageDirname,
			)
		}
		if cfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(
				vaultDir, vaultcfg.DefaultLogDirname,
			)
		}
	}

	cfg.VaultDir = vaultDir
	cfg.ConfigFile = vaultcfg.CleanAndExpandPath(cfg.ConfigFile)
	cfg.LogDir = vaultcfg.CleanAndExpandPath(cfg.LogDir)
	cfg.Storage.Dir = vaultcfg.CleanAndExpandPath(cfg.Storage.Dir)

	if cfg.MaxLogFiles < 0 {
		return nil, fmt.Errorf("maxlogfiles must not be negative")
	}
	if cfg.MaxLogFileSize <= 0 {
		return nil, fmt.Errorf("maxlogfilesize must be positive")
	}

	// Validate the subconfigs.
	err := vaultcfg.Validate(
		cfg.Storage,
		cfg.Crypto,
		cfg.Fees,
		cfg.Wallet,
	)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
