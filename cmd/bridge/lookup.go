package main

import (
	"encoding/json"
	"fmt"

	"termbridge/internal/bridge"
	"termbridge/internal/resolver"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var symbolsLimit int

var resolveCmd = &cobra.Command{
	Use:   "resolve <ticker>...",
	Short: "Resolve typed tickers to the terminal's symbol names",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols [query]",
	Short: "Search the terminal's symbol catalog",
	Long: `Search the symbol catalog. A query without "*" or "?" is a substring
match; an empty query lists the whole catalog.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSymbols,
}

func init() {
	rootCmd.AddCommand(resolveCmd, symbolsCmd)
	symbolsCmd.Flags().IntVarP(&symbolsLimit, "limit", "n", resolver.DefaultListLimit, "maximum names to print (1-500)")
}

// newOfflineService builds a bridge without starting the poller. Each call
// initializes the terminal through the gate on demand; callers Stop it to
// shut the terminal down.
func newOfflineService() (*bridge.Service, *zap.Logger, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, err
	}
	term, err := newTerminal(cfg)
	if err != nil {
		return nil, nil, err
	}
	return bridge.New(term, log, nil, bridge.Options{Driver: cfg.Terminal.Driver}), log, nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	svc, log, err := newOfflineService()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer svc.Stop()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	failed := 0
	for _, ticker := range args {
		res, err := svc.Resolve(cmd.Context(), ticker)
		if err != nil {
			failed++
			log.Debug("resolve failed", zap.String("ticker", ticker), zap.Error(err))
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tickers did not resolve", failed, len(args))
	}
	return nil
}

func runSymbols(cmd *cobra.Command, args []string) error {
	svc, log, err := newOfflineService()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer svc.Stop()

	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	names, last, err := svc.ListSymbols(cmd.Context(), query, symbolsLimit)
	if err != nil {
		log.Error("symbol search failed", zap.Error(err), zap.Any("last_error", last))
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
