package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/peersync/internal/client/api"
	"github.com/iudanet/peersync/internal/client/cli"
	"github.com/iudanet/peersync/internal/client/iocli"
	"github.com/iudanet/peersync/internal/config"
	"github.com/iudanet/peersync/internal/server/token"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to config file")
	apiURL := flag.String("api", "", "Control API URL (default: from api.listen)")
	tokenFile := flag.String("token-file", "", "Path to control API token (default: <data_dir>/api.token)")
	passphraseFile := flag.String("passphrase-file", "", "Path to file containing the account passphrase")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, flag.Args(), *configPath, *apiURL, *tokenFile, *passphraseFile)
	stop()
	if err != nil {
		if !errors.Is(err, cli.ErrUsage) || len(flag.Args()) > 0 {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, configPath, apiURL, tokenFile, passphraseFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	var client cli.NodeAPI
	if len(args) > 0 && cli.NeedsNode(args[0]) {
		if tokenFile == "" {
			tokenFile = cfg.TokenPath()
		}
		tok, err := token.ReadFile(tokenFile)
		if err != nil {
			return fmt.Errorf("node is not running or token is unavailable: %w", err)
		}
		if apiURL == "" {
			apiURL = cfg.APIURL()
		}
		client = api.NewClient(apiURL, tok)
	}

	return cli.New(iocli.NewStdio(), client, cfg, logger, passphraseFile).Run(ctx, args)
}

func printVersion() {
	fmt.Printf("PeerSync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
