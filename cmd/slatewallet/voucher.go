package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/slatewallet/slatewallet/pkg/voucher"
)

var voucherCmd = cli.Command{
	Name:  "voucher",
	Usage: "issue and redeem bearer vouchers",
	Subcommands: []*cli.Command{
		{
			Name:  "issue",
			Usage: "fund a voucher and print its bearer code",
			Flags: []cli.Flag{
				&cli.Uint64Flag{
					Name:     "amount",
					Usage:    "voucher value, in nanogrin",
					Required: true,
				},
			},
			Action: voucherIssueAction,
		},
		{
			Name:  "claim",
			Usage: "sweep a voucher into this wallet",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "code",
					Usage:    "the voucher bearer code",
					Required: true,
				},
			},
			Action: voucherClaimAction,
		},
	},
}

func voucherIssueAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	v, err := service.CreateVoucher(context.Background(), ctx.Uint64("amount"))
	if err != nil {
		return err
	}
	defer v.Erase()

	fmt.Println("voucher code (treat it like cash):")
	fmt.Println()
	fmt.Println(v.Encode())
	return nil
}

func voucherClaimAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	v, err := voucher.Decode(ctx.String("code"))
	if err != nil {
		return err
	}
	defer v.Erase()

	sweep, err := service.ClaimVoucher(context.Background(), v)
	if err != nil {
		return err
	}

	fmt.Printf("claimed %d nanogrin, sweep transfer %s\n", sweep.Amount, sweep.ID)
	return nil
}
