package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/slatewallet/slatewallet/internal/wallet"
)

var send = cli.Command{
	Name:  "send",
	Usage: "start a transfer and print the slatepack for the recipient",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:     "amount",
			Usage:    "amount to send, in nanogrin",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "recipient slatepack address",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:  "lock-height",
			Usage: "optional kernel lock height",
		},
	},
	Action: sendAction,
}

func sendAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	armored, err := service.Send(context.Background(), wallet.SendOpts{
		Amount:     ctx.Uint64("amount"),
		Recipient:  ctx.String("to"),
		LockHeight: ctx.Uint64("lock-height"),
	})
	if err != nil {
		return err
	}

	fmt.Println(armored)
	return nil
}

var receive = cli.Command{
	Name:  "receive",
	Usage: "accept an incoming slatepack and print the response",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "read the slatepack from this file instead of stdin",
		},
		&cli.StringFlag{
			Name:     "from",
			Usage:    "sender slatepack address",
			Required: true,
		},
	},
	Action: receiveAction,
}

func receiveAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	armored, err := readSlatepack(ctx)
	if err != nil {
		return err
	}
	response, err := service.Receive(context.Background(), wallet.ReceiveOpts{
		Armored: armored,
		Sender:  ctx.String("from"),
	})
	if err != nil {
		return err
	}

	fmt.Println(response)
	return nil
}

var finalize = cli.Command{
	Name:  "finalize",
	Usage: "finalize a transfer from the counterparty's response",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "read the slatepack from this file instead of stdin",
		},
	},
	Action: finalizeAction,
}

func finalizeAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	armored, err := readSlatepack(ctx)
	if err != nil {
		return err
	}
	finalized, err := service.Finalize(context.Background(), armored)
	if err != nil {
		return err
	}

	fmt.Printf("transfer %s finalized, fee %d\n", finalized.ID, finalized.Fee)
	return nil
}

var cancel = cli.Command{
	Name:  "cancel",
	Usage: "abandon an in-flight transfer and release its inputs",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Usage:    "slate id of the transfer",
			Required: true,
		},
	},
	Action: cancelAction,
}

func cancelAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	slateID, err := uuid.Parse(ctx.String("id"))
	if err != nil {
		return fmt.Errorf("parsing slate id: %w", err)
	}
	return service.Cancel(slateID)
}
