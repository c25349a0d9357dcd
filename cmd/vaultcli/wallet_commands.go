package main

import (
	"fmt"
	"os"
	"time"

	"github.com/coldvault/coldvault"
	"github.com/coldvault/coldvault/coinreg"
	"github.com/coldvault/coldvault/walletstore"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/urfave/cli"
)

var createCommand = cli.Command{
	Name:      "create",
	Category:  "Wallets",
	Usage:     "Create a new wallet with a fresh recovery phrase.",
	ArgsUsage: "name",
	Description: `
	Creates a wallet from a newly generated 24 word recovery phrase and
	derives the first receive address of every supported currency.

	The recovery phrase is only ever shown once. Write it down and keep it
	somewhere safe, it is the only way to recover the wallet without the
	vault.`,
	Action: create,
}

func create(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "create")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	created, err := mgr.CreateWallet(ctx.Args().First(), fn.None[string]())
	if err != nil {
		return err
	}

	printJSON(struct {
		WalletID string `json:"wallet_id"`
		Mnemonic string `json:"mnemonic"`
	}{
		WalletID: created.WalletID,
		Mnemonic: created.Mnemonic,
	})

	return nil
}

var restoreCommand = cli.Command{
	Name:      "restore",
	Category:  "Wallets",
	Usage:     "Restore a wallet from its recovery phrase.",
	ArgsUsage: "name",
	Description: `
	Restores a wallet from an existing BIP-39 recovery phrase. The phrase
	is read from the terminal unless --mnemonic_file is set.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:      "mnemonic_file",
			Usage:     "read the recovery phrase from this file",
			TakesFile: true,
		},
	},
	Action: restore,
}

func restore(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "restore")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	var phrase string
	if path := ctx.String("mnemonic_file"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to read mnemonic file: %w",
				err)
		}
		phrase = string(content)
	} else {
		phrase, err = readLine("Input your recovery phrase: ")
		if err != nil {
			return err
		}
	}

	id, err := mgr.RestoreWallet(ctx.Args().First(), phrase)
	if err != nil {
		return err
	}

	printJSON(struct {
		WalletID string `json:"wallet_id"`
	}{
		WalletID: id,
	})

	return nil
}

var listWalletsCommand = cli.Command{
	Name:     "list",
	Category: "Wallets",
	Usage:    "List all wallets of the vault.",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "json",
			Usage: "print the wallets as JSON",
		},
	},
	Action: listWallets,
}

func listWallets(ctx *cli.Context) error {
	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	wallets, err := mgr.ListWallets()
	if err != nil {
		return err
	}

	if ctx.Bool("json") {
		printJSON(fn.Map(wallets, publicWallet))
		return nil
	}

	t := newTable()
	t.AppendHeader(table.Row{
		"ID", "Name", "Addresses", "Created", "Last used",
	})
	for _, w := range wallets {
		t.AppendRow(table.Row{
			w.ID, w.Name, len(w.Addresses),
			w.CreatedAt.Format(time.RFC3339),
			w.LastUsed.Format(time.RFC3339),
		})
	}
	t.Render()

	return nil
}

var showWalletCommand = cli.Command{
	Name:      "show",
	Category:  "Wallets",
	Usage:     "Show the per currency summary of a wallet.",
	ArgsUsage: "wallet_id",
	Action:    showWallet,
}

func showWallet(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "show")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	id := ctx.Args().First()
	w, err := mgr.GetWallet(id)
	if err != nil {
		return err
	}

	summaries, err := mgr.CoinSummaries(id)
	if err != nil {
		return err
	}

	fmt.Printf("%v (%v)\n", w.Name, w.ID)

	t := newTable()
	t.AppendHeader(table.Row{
		"Currency", "Name", "Address", "Addresses", "Balance",
	})
	for _, s := range summaries {
		c, err := mgr.Registry().Lookup(s.Currency)
		if err != nil {
			return err
		}

		t.AppendRow(table.Row{
			s.Currency, s.Name, s.Address, s.AddressCount,
			coinreg.FormatAmount(s.Balance, c),
		})
	}
	t.Render()

	return nil
}

var coinsCommand = cli.Command{
	Name:     "coins",
	Category: "Wallets",
	Usage:    "List the supported currencies.",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "testnet",
			Usage: "only list test networks",
		},
		cli.BoolFlag{
			Name:  "mainnet",
			Usage: "only list main networks",
		},
	},
	Action: coins,
}

func coins(ctx *cli.Context) error {
	// Listing currencies needs the configured fee rates, not the vault.
	cfg, err := coldvault.LoadConfig(configArgs(ctx))
	if err != nil {
		return err
	}

	registry, err := cfg.Fees.Registry()
	if err != nil {
		return err
	}

	currencies := registry.All()
	switch {
	case ctx.Bool("testnet") && ctx.Bool("mainnet"):
		return fmt.Errorf("--testnet and --mainnet are exclusive")

	case ctx.Bool("testnet"):
		currencies = registry.Testnet()

	case ctx.Bool("mainnet"):
		currencies = registry.Mainnet()
	}

	t := newTable()
	t.AppendHeader(table.Row{
		"Symbol", "Name", "Network", "Path", "Fee rate",
	})
	for _, c := range currencies {
		t.AppendRow(table.Row{
			c.Symbol, c.Name, c.Network, c.DerivationPath,
			c.FeeRate(),
		})
	}
	t.Render()

	return nil
}

var deleteWalletCommand = cli.Command{
	Name:      "delete",
	Category:  "Wallets",
	Usage:     "Delete a wallet from the vault.",
	ArgsUsage: "wallet_id",
	Description: `
	Removes a wallet and all of its addresses. Unless a backup holds it,
	the wallet can only be brought back with its recovery phrase.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "force",
			Usage: "don't ask for confirmation",
		},
	},
	Action: deleteWallet,
}

func deleteWallet(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "delete")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	id := ctx.Args().First()
	w, err := mgr.GetWallet(id)
	if err != nil {
		return err
	}

	if !ctx.Bool("force") {
		answer, err := readLine(fmt.Sprintf("Delete wallet %q (%v)? "+
			"(yes/no): ", w.Name, w.ID))
		if err != nil {
			return err
		}
		if answer != "yes" {
			return fmt.Errorf("aborted")
		}
	}

	return mgr.DeleteWallet(id)
}

// walletInfo is the JSON view of a wallet, without its sealed seed.
type walletInfo struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Addresses []walletstore.Address `json:"addresses"`
	CreatedAt time.Time             `json:"created_at"`
	LastUsed  time.Time             `json:"last_used"`
}

func publicWallet(w *walletstore.Wallet) walletInfo {
	return walletInfo{
		ID:        w.ID,
		Name:      w.Name,
		Addresses: w.Addresses,
		CreatedAt: w.CreatedAt,
		LastUsed:  w.LastUsed,
	}
}

// newTable returns a table writer printing to stdout.
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	return t
}
