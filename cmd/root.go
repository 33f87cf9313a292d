package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "btc15m-maker",
	Short: "15-minute BTC/USD binary-option market maker/taker",
	Long: `btc15m-maker trades 15-minute BTC/USD binary options on a central-limit
order-book prediction market, using an empirical probability matrix built
from historical BTC candles.

Subcommands: build (fold history into a Matrix and persist it), query
(print a recommendation for a given window position), stats (print Matrix
health), backtest (replay history through the decision logic without
touching the live collaborators), and run (start the live bot).`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	// Flags can be added here if needed
}
