package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/slatewallet/slatewallet/internal/wallet"
)

var invoice = cli.Command{
	Name:  "invoice",
	Usage: "ask to be paid and print the slatepack for the payer",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:     "amount",
			Usage:    "amount to request, in nanogrin",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "payer",
			Usage:    "payer slatepack address",
			Required: true,
		},
	},
	Action: invoiceAction,
}

func invoiceAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	armored, err := service.Invoice(context.Background(), wallet.InvoiceOpts{
		Amount: ctx.Uint64("amount"),
		Payer:  ctx.String("payer"),
	})
	if err != nil {
		return err
	}

	fmt.Println(armored)
	return nil
}

var payinvoice = cli.Command{
	Name:  "pay",
	Usage: "fund an incoming invoice and print the response",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "read the slatepack from this file instead of stdin",
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "invoicing party's slatepack address",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:  "max-amount",
			Usage: "refuse invoices above this amount, in nanogrin",
		},
	},
	Action: payInvoiceAction,
}

func payInvoiceAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	armored, err := readSlatepack(ctx)
	if err != nil {
		return err
	}
	response, err := service.PayInvoice(context.Background(), wallet.PayInvoiceOpts{
		Armored:   armored,
		Receiver:  ctx.String("to"),
		MaxAmount: ctx.Uint64("max-amount"),
	})
	if err != nil {
		return err
	}

	fmt.Println(response)
	return nil
}
