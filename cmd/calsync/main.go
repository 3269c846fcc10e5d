package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaycrm/calsync/adapter/cli"
	cliAuth "github.com/relaycrm/calsync/adapter/cli/auth"
	"github.com/relaycrm/calsync/internal/app"
	"github.com/relaycrm/calsync/pkg/config"
	"github.com/relaycrm/calsync/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialize: %v\n", err)
		os.Exit(1)
	}
	defer container.Close()

	cli.SetLogger(logger)
	cli.SetContainer(container)
	cliAuth.SetVault(container.Vault)
	cli.AddCommand(cliAuth.Cmd)

	cli.Execute()
}
