package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/openalpha/hourex/api"
	"github.com/openalpha/hourex/exchange/clock"
	"github.com/openalpha/hourex/exchange/engine"
	"github.com/openalpha/hourex/exchange/events"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.NewLogger(os.Stderr).Error("failure when running exchange", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := api.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "hourexd",
		Short: "Hourly delivery contract exchange",
		Long: `hourexd runs the exchange: a limit order book per one-hour delivery
window with price-time priority matching, collateral admission control
and push streams for trades, book deltas and execution reports.

State is persisted to $PERSISTENT_DIR/exchange_state.json when
PERSISTENT_DIR is set, and held in memory otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	rootCmd.Flags().StringVar(&cfg.Host, "host", cfg.Host, "listen host")
	rootCmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	return rootCmd
}

func run(cfg *api.Config) error {
	logger := log.NewLogger(os.Stderr)

	engCfg := engine.DefaultConfig()
	if dir := os.Getenv("PERSISTENT_DIR"); dir != "" {
		engCfg.PersistentDir = dir
		logger.Info("persistence enabled", "dir", dir)
	}

	bus := events.NewBus()
	eng := engine.New(engCfg, logger, clock.System{}, bus)
	server := api.NewServer(cfg, logger, eng, bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	})
	return g.Wait()
}
