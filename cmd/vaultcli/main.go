package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/coldvault/coldvault"
	"github.com/coldvault/coldvault/build"
	"github.com/coldvault/coldvault/vaultcfg"
	"github.com/coldvault/coldvault/walletmgr"
	"github.com/urfave/cli"
	"golang.org/x/term"
)

const (
	// passwordEnv names the environment variable a master password may be
	// taken from for unattended use.
	passwordEnv = "COLDVAULT_PASSWORD"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[vaultcli] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "vaultcli"
	app.Version = build.Version() + " commit=" + build.Commit
	app.Usage = "offline multi-currency wallet vault"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:      "vaultdir",
			Value:     coldvault.DefaultVaultDir,
			Usage:     "The path to the vault's base directory.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name:      "configfile",
			Usage:     "The path to the vault's config file.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name: "debuglevel",
			Usage: "Logging level for all subsystems, or " +
				"<global-level>,<subsystem>=<level>,...",
		},
		cli.BoolFlag{
			Name:  "nologfile",
			Usage: "Only log to stderr.",
		},
		cli.StringFlag{
			Name: "passwordfile",
			Usage: "Read the master password from this file " +
				"instead of prompting. The " + passwordEnv +
				" environment variable is used if set.",
			TakesFile: true,
		},
	}
	app.Commands = []cli.Command{
		createCommand,
		restoreCommand,
		listWalletsCommand,
		showWalletCommand,
		coinsCommand,
		deleteWalletCommand,
		newAddressCommand,
		listAddressesCommand,
		balanceCommand,
		setBalanceCommand,
		ownsAddressCommand,
		xpubCommand,
		createTxCommand,
		backupCommand,
		listBackupsCommand,
		restoreBackupCommand,
		changePasswordCommand,
		debugLevelsCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// configArgs turns the global flags into arguments for the config loader.
func configArgs(ctx *cli.Context) []string {
	args := []string{"--vaultdir=" + ctx.GlobalString("vaultdir")}
	if ctx.GlobalIsSet("configfile") {
		args = append(args, "--configfile="+ctx.GlobalString("configfile"))
	}
	if ctx.GlobalIsSet("debuglevel") {
		args = append(args, "--debuglevel="+ctx.GlobalString("debuglevel"))
	}
	if ctx.GlobalBool("nologfile") {
		args = append(args, "--nologfile")
	}

	return args
}

// getManager loads the configuration, opens the vault and unlocks it with
// the master password.
func getManager(ctx *cli.Context) (*walletmgr.Manager, func(), error) {
	cfg, err := coldvault.LoadConfig(configArgs(ctx))
	if err != nil {
		return nil, nil, err
	}

	if err := coldvault.SetupLoggers(cfg); err != nil {
		return nil, nil, err
	}

	mgr, _, err := coldvault.NewManager(cfg)
	if err != nil {
		_ = coldvault.LogRotator.Close()
		return nil, nil, err
	}

	password, err := masterPassword(ctx, "Master password: ")
	if err != nil {
		_ = coldvault.LogRotator.Close()
		return nil, nil, err
	}
	defer zero(password)

	if err := mgr.Initialize(password); err != nil {
		_ = coldvault.LogRotator.Close()
		return nil, nil, err
	}

	cleanUp := func() {
		mgr.Close()
		_ = coldvault.LogRotator.Close()
	}

	return mgr, cleanUp, nil
}

// masterPassword returns the master password from the password file, the
// environment or the terminal, in that order.
func masterPassword(ctx *cli.Context, prompt string) ([]byte, error) {
	if path := ctx.GlobalString("passwordfile"); path != "" {
		content, err := os.ReadFile(vaultcfg.CleanAndExpandPath(path))
		if err != nil {
			return nil, fmt.Errorf("unable to read password file: %w",
				err)
		}

		return bytes.TrimRight(content, "\r\n"), nil
	}

	if pw := os.Getenv(passwordEnv); pw != "" {
		return []byte(pw), nil
	}

	return readPassword(prompt)
}

// readPassword reads a password from the terminal. This requires there to be
// an actual TTY so passing in a password from stdin won't work.
func readPassword(text string) ([]byte, error) {
	fmt.Print(text)

	// The variable syscall.Stdin is of a different type in the Windows API
	// that's why we need the explicit cast. And of course the linter
	// doesn't like it either.
	pw, err := term.ReadPassword(int(syscall.Stdin)) // nolint:unconvert
	fmt.Println()
	return pw, err
}

// readNewPassword prompts twice for a new password and checks both match.
func readNewPassword(text string) ([]byte, error) {
	pw, err := readPassword(text)
	if err != nil {
		return nil, err
	}

	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer zero(confirm)

	if !bytes.Equal(pw, confirm) {
		zero(pw)
		return nil, fmt.Errorf("passwords don't match")
	}

	return pw, nil
}

// readLine reads one line of visible input from the terminal.
func readLine(text string) (string, error) {
	fmt.Print(text)

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func printJSON(resp interface{}) {
	b, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		fatal(err)
	}

	fmt.Println(string(b))
}
