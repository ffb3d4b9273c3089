package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/peersync/internal/client/iocli"
	"github.com/iudanet/peersync/internal/config"
	"github.com/iudanet/peersync/internal/node"
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
	passphraseFile := flag.String("passphrase-file", "", "Path to file containing the account passphrase")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(*configPath, *passphraseFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, passphraseFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	passphrase, err := iocli.ReadPassphrase(iocli.NewStdio(), passphraseFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := node.Open(ctx, cfg, passphrase, logger, node.WithVersion(Version))
	if err != nil {
		return err
	}

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("failed to start node: %w", multiShutdown(n, err))
	}

	logger.Info("peersync daemon running", "version", Version, "api", n.APIAddr(), "token_file", cfg.TokenPath())
	<-ctx.Done()
	logger.Info("shutting down")

	return n.Shutdown()
}

// multiShutdown закрывает узел после неудачного старта
func multiShutdown(n *node.Node, cause error) error {
	if err := n.Shutdown(); err != nil {
		return fmt.Errorf("%w (shutdown: %w)", cause, err)
	}
	return cause
}

func printVersion() {
	fmt.Printf("PeerSync Daemon\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
