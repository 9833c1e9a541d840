package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/vulpemventures/go-bip39"

	"github.com/slatewallet/slatewallet/internal/config"
)

var initwallet = cli.Command{
	Name:  "init",
	Usage: "create a new wallet, or restore one from a mnemonic",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "mnemonic",
			Usage: "restore from an existing seed phrase instead of generating one",
		},
	},
	Action: initWalletAction,
}

func initWalletAction(ctx *cli.Context) error {
	if err := config.InitConfig(); err != nil {
		return err
	}
	if _, err := os.Stat(seedPath()); err == nil {
		return errors.New("wallet already initialized")
	}

	mnemonic := ctx.String("mnemonic")
	generated := mnemonic == ""
	if generated {
		entropy, err := bip39.NewEntropy(256)
		if err != nil {
			return err
		}
		mnemonic, err = bip39.NewMnemonic(entropy)
		if err != nil {
			return err
		}
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return errors.New("mnemonic is invalid")
	}

	if err := os.WriteFile(seedPath(), []byte(mnemonic+"\n"), 0600); err != nil {
		return err
	}

	service, cleanup, err := getService()
	if err != nil {
		return err
	}
	defer cleanup()

	if generated {
		fmt.Println("write this seed phrase down, it is the only backup:")
		fmt.Println()
		fmt.Println(mnemonic)
		fmt.Println()
	}
	fmt.Println("slatepack address:", service.Address())
	return nil
}
