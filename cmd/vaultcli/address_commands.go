package main

import (
	"github.com/coldvault/coldvault/coinreg"
	"github.com/coldvault/coldvault/walletmgr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/urfave/cli"
)

var newAddressCommand = cli.Command{
	Name:      "newaddress",
	Category:  "Addresses",
	Usage:     "Derive the next receive address of a currency.",
	ArgsUsage: "wallet_id currency",
	Action:    newAddress,
}

func newAddress(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "newaddress")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	args := ctx.Args()
	addr, err := mgr.GenerateNewAddress(args.Get(0), args.Get(1))
	if err != nil {
		return err
	}

	printJSON(addr)

	return nil
}

var listAddressesCommand = cli.Command{
	Name:      "addresses",
	Category:  "Addresses",
	Usage:     "List the addresses of a wallet.",
	ArgsUsage: "wallet_id",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "currency",
			Usage: "only list addresses of this currency",
		},
	},
	Action: listAddresses,
}

func listAddresses(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "addresses")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	filter := fn.None[string]()
	if ctx.IsSet("currency") {
		filter = fn.Some(ctx.String("currency"))
	}

	addrs, err := mgr.ListAddresses(ctx.Args().First(), filter)
	if err != nil {
		return err
	}

	t := newTable()
	t.AppendHeader(table.Row{
		"Currency", "Path", "Address", "Balance", "Used",
	})
	for _, a := range addrs {
		c, err := mgr.Registry().Lookup(a.Currency)
		if err != nil {
			return err
		}

		t.AppendRow(table.Row{
			a.Currency, a.DerivationPath, a.Address,
			coinreg.FormatAmount(a.Balance, c), a.Used,
		})
	}
	t.Render()

	return nil
}

var balanceCommand = cli.Command{
	Name:      "balance",
	Category:  "Addresses",
	Usage:     "Show the recorded balance of a currency.",
	ArgsUsage: "wallet_id currency",
	Action:    balance,
}

func balance(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "balance")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	args := ctx.Args()
	bal, err := mgr.GetBalance(args.Get(0), args.Get(1))
	if err != nil {
		return err
	}

	c, err := mgr.Registry().Lookup(bal.Currency)
	if err != nil {
		return err
	}

	printJSON(struct {
		Currency    string `json:"currency"`
		Confirmed   string `json:"confirmed"`
		Unconfirmed string `json:"unconfirmed"`
		Total       string `json:"total"`
	}{
		Currency:    bal.Currency,
		Confirmed:   coinreg.FormatAmount(bal.Confirmed, c),
		Unconfirmed: coinreg.FormatAmount(bal.Unconfirmed, c),
		Total:       coinreg.FormatAmount(bal.Total, c),
	})

	return nil
}

var setBalanceCommand = cli.Command{
	Name:      "setbalance",
	Category:  "Addresses",
	Usage:     "Record the balance an address holds.",
	ArgsUsage: "wallet_id address amount",
	Description: `
	Records the balance of one of the wallet's addresses, as observed on
	an online machine. The amount is given in whole coins, e.g. 0.015.`,
	Action: setBalance,
}

func setBalance(ctx *cli.Context) error {
	if ctx.NArg() != 3 {
		return cli.ShowCommandHelp(ctx, "setbalance")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	args := ctx.Args()
	id, address := args.Get(0), args.Get(1)

	c, err := addressCurrency(mgr, id, address)
	if err != nil {
		return err
	}

	amt, err := coinreg.ParseAmount(args.Get(2), c)
	if err != nil {
		return err
	}

	return mgr.UpdateBalance(id, address, amt)
}

// addressCurrency returns the currency of one of a wallet's addresses.
func addressCurrency(mgr *walletmgr.Manager, id,
	address string) (*coinreg.Currency, error) {

	addrs, err := mgr.ListAddresses(id, fn.None[string]())
	if err != nil {
		return nil, err
	}

	for _, a := range addrs {
		if a.Address == address {
			return mgr.Registry().Lookup(a.Currency)
		}
	}

	return nil, walletmgr.ErrAddressNotFound
}

var ownsAddressCommand = cli.Command{
	Name:      "owns",
	Category:  "Addresses",
	Usage:     "Check whether an address belongs to a wallet.",
	ArgsUsage: "wallet_id currency address",
	Action:    ownsAddress,
}

func ownsAddress(ctx *cli.Context) error {
	if ctx.NArg() != 3 {
		return cli.ShowCommandHelp(ctx, "owns")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	args := ctx.Args()
	owned, err := mgr.OwnsAddress(args.Get(0), args.Get(1), args.Get(2))
	if err != nil {
		return err
	}

	printJSON(struct {
		Owned bool `json:"owned"`
	}{
		Owned: owned,
	})

	return nil
}

var xpubCommand = cli.Command{
	Name:      "xpub",
	Category:  "Addresses",
	Usage:     "Export the account extended public key of a currency.",
	ArgsUsage: "wallet_id currency",
	Action:    xpub,
}

func xpub(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "xpub")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	args := ctx.Args()
	key, err := mgr.ExtendedPublicKey(args.Get(0), args.Get(1))
	if err != nil {
		return err
	}

	printJSON(struct {
		ExtendedPublicKey string `json:"extended_public_key"`
	}{
		ExtendedPublicKey: key,
	})

	return nil
}
