package main

import (
	"fmt"
	"strings"

	"github.com/coldvault/coldvault"
	"github.com/coldvault/coldvault/build"
	"github.com/urfave/cli"
)

var backupCommand = cli.Command{
	Name:     "backup",
	Category: "Backups",
	Usage:    "Write an encrypted snapshot of all wallets.",
	Action:   backup,
}

func backup(ctx *cli.Context) error {
	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	path, err := mgr.CreateBackup()
	if err != nil {
		return err
	}

	printJSON(struct {
		Path string `json:"path"`
	}{
		Path: path,
	})

	return nil
}

var listBackupsCommand = cli.Command{
	Name:     "listbackups",
	Category: "Backups",
	Usage:    "List the backups of the vault, newest first.",
	Action:   listBackups,
}

func listBackups(ctx *cli.Context) error {
	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	backups, err := mgr.ListBackups()
	if err != nil {
		return err
	}

	for _, b := range backups {
		fmt.Println(b)
	}

	return nil
}

var restoreBackupCommand = cli.Command{
	Name:      "restorebackup",
	Category:  "Backups",
	Usage:     "Replace all wallets with the content of a backup.",
	ArgsUsage: "backup_file",
	Description: `
	Replaces every wallet of the vault with the wallets of the backup. The
	backup must have been written under the current master password.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "force",
			Usage: "don't ask for confirmation",
		},
	},
	Action: restoreBackup,
}

func restoreBackup(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "restorebackup")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	if !ctx.Bool("force") {
		answer, err := readLine("All current wallets will be replaced. " +
			"Continue? (yes/no): ")
		if err != nil {
			return err
		}
		if answer != "yes" {
			return fmt.Errorf("aborted")
		}
	}

	return mgr.RestoreFromBackup(ctx.Args().First())
}

var changePasswordCommand = cli.Command{
	Name:     "changepassword",
	Category: "Backups",
	Usage:    "Change the master password of the vault.",
	Description: `
	Re-encrypts every recovery phrase and the wallet file under a new
	master password. Existing backups stay sealed under the password they
	were written with.`,
	Action: changePassword,
}

func changePassword(ctx *cli.Context) error {
	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	oldPassword, err := masterPassword(ctx, "Current password: ")
	if err != nil {
		return err
	}
	defer zero(oldPassword)

	newPassword, err := readNewPassword("New password: ")
	if err != nil {
		return err
	}
	defer zero(newPassword)

	return mgr.ChangeMasterPassword(oldPassword, newPassword)
}

var debugLevelsCommand = cli.Command{
	Name:  "debuglevels",
	Usage: "List the logging subsystems --debuglevel accepts.",
	Action: func(ctx *cli.Context) error {
		fmt.Printf("Levels: %v\n", strings.Join(build.Levels(), ", "))
		fmt.Printf("Subsystems: %v\n",
			strings.Join(coldvault.SupportedSubsystems(), ", "))

		return nil
	},
}
