package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var address = cli.Command{
	Name:   "address",
	Usage:  "print the wallet's slatepack address",
	Action: addressAction,
}

func addressAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println(service.Address())
	return nil
}

var balance = cli.Command{
	Name:   "balance",
	Usage:  "print the wallet balance per output status",
	Action: balanceAction,
}

func balanceAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	balance, err := service.Balance()
	if err != nil {
		return err
	}
	return printJSON(balance)
}

var transactions = cli.Command{
	Name:   "transactions",
	Usage:  "print the transfer log",
	Action: transactionsAction,
}

func transactionsAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := service.Transactions()
	if err != nil {
		return err
	}
	return printJSON(records)
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "\t")
	return encoder.Encode(v)
}
