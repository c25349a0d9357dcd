package main

import (
	"github.com/coldvault/coldvault/coinreg"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/urfave/cli"
)

var createTxCommand = cli.Command{
	Name:      "createtx",
	Category:  "Transactions",
	Usage:     "Build and sign a transaction from recorded balances.",
	ArgsUsage: "wallet_id currency to_address amount",
	Description: `
	Builds a signed transaction paying amount, in whole coins, to
	to_address. Every address with a recorded balance may be spent from and
	change goes back to the wallet's first address of the currency.

	Nothing is broadcast. Copy the raw transaction to an online machine to
	publish it.`,
	Flags: []cli.Flag{
		cli.Uint64Flag{
			Name: "sat_per_vbyte",
			Usage: "(optional) the fee rate in sat/vbyte, the " +
				"currency's recommended rate is used if unset",
		},
	},
	Action: createTx,
}

func createTx(ctx *cli.Context) error {
	if ctx.NArg() != 4 {
		return cli.ShowCommandHelp(ctx, "createtx")
	}

	mgr, cleanUp, err := getManager(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	args := ctx.Args()
	id, symbol, to := args.Get(0), args.Get(1), args.Get(2)

	c, err := mgr.Registry().Lookup(symbol)
	if err != nil {
		return err
	}

	amt, err := coinreg.ParseAmount(args.Get(3), c)
	if err != nil {
		return err
	}

	feeRate := fn.None[coinreg.SatPerVByte]()
	if ctx.IsSet("sat_per_vbyte") {
		feeRate = fn.Some(coinreg.SatPerVByte(ctx.Uint64("sat_per_vbyte")))
	}

	tx, err := mgr.CreateTransaction(id, symbol, to, amt, feeRate)
	if err != nil {
		return err
	}

	printJSON(struct {
		TxID    string   `json:"txid"`
		RawTx   string   `json:"raw_tx"`
		Amount  string   `json:"amount"`
		Fee     string   `json:"fee"`
		Change  string   `json:"change"`
		FeeRate string   `json:"fee_rate"`
		Size    int      `json:"size"`
		Inputs  []string `json:"inputs"`
	}{
		TxID:    tx.TxID,
		RawTx:   tx.RawTx,
		Amount:  coinreg.FormatAmount(tx.Amount, c),
		Fee:     coinreg.FormatAmount(tx.Fee, c),
		Change:  coinreg.FormatAmount(tx.Change, c),
		FeeRate: tx.FeeRate.String(),
		Size:    tx.Size,
		Inputs:  tx.Inputs,
	})

	return nil
}
