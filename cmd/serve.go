package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/crystaldolphin/hermes/internal/config"
	"github.com/crystaldolphin/hermes/internal/dependency"
	"github.com/crystaldolphin/hermes/internal/shared/cmdutils"
)

const startupTimeout = 30 * time.Second

var (
	servePort    int
	serveVerbose bool
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"gateway"},
	Short:   "Connect to the backend and start relaying replies",
	RunE:    runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8012, "Gateway port")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Verbose logging")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Gateway.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(serveVerbose)
	slog.SetDefault(logger)

	// Graceful shutdown context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	c, err := dependency.New(startCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}

	me := c.Identity()
	fmt.Printf("%s Starting hermes as %s on %s...\n", cmdutils.Logo, displayName(me.Username, me.Email, me.ID), cfg.Gateway.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Link().Run(gctx) })
	g.Go(func() error { return c.Gateway().Run(gctx) })
	g.Go(func() error { return c.Reporter().Start(gctx) })

	fmt.Printf("%s hermes running. Press Ctrl+C to stop.\n", cmdutils.Logo)

	err = g.Wait()
	c.Registry().CloseAll()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "hermes error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func displayName(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return "(unknown)"
}
