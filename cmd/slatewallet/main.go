package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/slatewallet/slatewallet/internal/config"
	"github.com/slatewallet/slatewallet/internal/storage"
	"github.com/slatewallet/slatewallet/internal/wallet"
	"github.com/slatewallet/slatewallet/pkg/relay"
	"github.com/slatewallet/slatewallet/pkg/secp/zkp"
)

const seedFilename = "wallet.seed"

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "slatewallet CLI"
	app.Usage = "Command line interface for interactive Mimblewimble transfers"
	app.Commands = append(
		app.Commands,
		&initwallet,
		&address,
		&balance,
		&transactions,
		&send,
		&receive,
		&finalize,
		&cancel,
		&invoice,
		&payinvoice,
		&voucherCmd,
		&syncCmd,
	)

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[slatewallet] %v\n", err)
	os.Exit(1)
}

func seedPath() string {
	return filepath.Join(config.GetDatadir(), seedFilename)
}

func readSeed() (string, error) {
	raw, err := os.ReadFile(seedPath())
	if err != nil {
		return "", errors.New("no wallet found: try 'slatewallet init'")
	}
	return strings.TrimSpace(string(raw)), nil
}

// getService assembles the wallet with everything the commands need. The
// returned cleanup closes the store and erases the key material.
func getService() (*wallet.Service, func(), error) {
	if err := config.InitConfig(); err != nil {
		return nil, nil, err
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	mnemonic, err := readSeed()
	if err != nil {
		return nil, nil, err
	}

	capability, err := zkp.New()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewStore(config.GetDbDir(), nil)
	if err != nil {
		capability.Close()
		return nil, nil, err
	}

	var relayClient *relay.Client
	if url := config.GetString(config.RelayURLKey); url != "" {
		relayClient = relay.NewClient(url, config.GetRelayTimeout())
	}

	service, err := wallet.NewService(wallet.NewServiceOpts{
		Secp:     capability,
		Mnemonic: mnemonic,
		Store:    store,
		Relay:    relayClient,
	})
	if err != nil {
		store.Close()
		capability.Close()
		return nil, nil, err
	}

	cleanup := func() {
		service.Close()
		store.Close()
		capability.Close()
	}
	return service, cleanup, nil
}

// readSlatepack loads the armored payload from --file, or from stdin when
// no file is given.
func readSlatepack(ctx *cli.Context) (string, error) {
	if file := ctx.String("file"); file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", errors.New("empty slatepack: pass --file or pipe it on stdin")
	}
	return string(raw), nil
}
