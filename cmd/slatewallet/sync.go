package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

var syncCmd = cli.Command{
	Name:   "sync",
	Usage:  "reconcile the output set against the chain through the relay",
	Action: syncAction,
}

func syncAction(ctx *cli.Context) error {
	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := service.Sync(context.Background()); err != nil {
		return err
	}
	fmt.Println("wallet synced")
	return nil
}
