package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mselser95/btc15m-maker/internal/app"
	"github.com/mselser95/btc15m-maker/internal/bucketing"
	"github.com/mselser95/btc15m-maker/internal/candles"
	"github.com/mselser95/btc15m-maker/internal/edge"
	"github.com/mselser95/btc15m-maker/internal/sizing"
	"github.com/mselser95/btc15m-maker/pkg/config"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	backtestHistoryPath string
	backtestMarketPrice float64
	backtestTickSeconds int
)

//nolint:gochecknoglobals // Cobra boilerplate
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical candles through the decision logic and report simulated P&L",
	Long: `backtest folds a CSV of historical candles into 900-second windows and,
at each tick, buckets the window's elapsed time and price delta, evaluates
edge against a flat assumed market price, and sizes a simulated bet exactly
the way the live Decision Engine would (edge.Calculator + sizing.Sizer).
It never touches a live exchange collaborator; it is purely a report.`,
	RunE: runBacktest,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	backtestCmd.Flags().StringVar(&backtestHistoryPath, "history", "", "path to a CSV of 1-second BTC/USD OHLC candles (required)")
	_ = backtestCmd.MarkFlagRequired("history")
	backtestCmd.Flags().Float64Var(&backtestMarketPrice, "market-price", 0.5, "assumed flat market price for every simulated bet, in (0,1]")
	backtestCmd.Flags().IntVar(&backtestTickSeconds, "tick-seconds", 15, "simulated decision interval within each window, in seconds")
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(exitConfigError)
	}

	logger, err := config.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(exitConfigError)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush on exit

	history, err := candles.LoadCSV(backtestHistoryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "candle history error: %v\n", err)
		os.Exit(exitConfigError)
	}
	if len(history) < 900 {
		fmt.Fprintln(os.Stderr, "fewer than 900 candles; no complete window to backtest")
		os.Exit(exitDataInsufficient)
	}

	ctx := context.Background()
	store, err := app.OpenMatrixStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "matrix store error: %v\n", err)
		os.Exit(exitPersistenceError)
	}
	defer store.Close() //nolint:errcheck // best-effort close on exit

	snap, err := store.LoadActive(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load active matrix error: %v\n", err)
		os.Exit(exitPersistenceError)
	}
	if snap == nil {
		fmt.Fprintln(os.Stderr, "no active matrix snapshot: run the 'build' subcommand first")
		os.Exit(exitDataInsufficient)
	}

	calc := edge.NewCalculator(edge.Thresholds{
		Strong:   cfg.EdgeMinStrong,
		Moderate: cfg.EdgeMinModerate,
		Weak:     cfg.EdgeMinWeak,
	})
	sizer := sizing.NewSizer(
		sizing.ConfidenceFractions{
			Strong:   cfg.SizingKellyFractionStrong,
			Moderate: cfg.SizingKellyFractionModerate,
			Weak:     cfg.SizingKellyFractionWeak,
		},
		sizing.Limits{
			FractionCap:       cfg.SizingMaxBetPct,
			MaxBetUSDC:        decimal.NewFromFloat(cfg.SizingMaxBetUSDC),
			MinBetUSDC:        decimal.NewFromFloat(cfg.SizingMinBetUSDC),
			DailyLossLimitPct: cfg.RiskDailyLossLimitPct,
		},
	)

	bankroll := decimal.NewFromFloat(cfg.BankrollStartingUSDC)
	windows := 0
	betsPlaced := 0
	wins := 0
	var realizedPnL decimal.Decimal

	for windowStart := 0; windowStart+900 <= len(history); windowStart += 900 {
		windows++
		open := history[windowStart].Close
		closePx := history[windowStart+899].Close

		outcome := types.Down
		if closePx.GreaterThan(open) {
			outcome = types.Up
		}

		betThisWindow := false
		for elapsed := 0; elapsed < 900 && !betThisWindow; elapsed += backtestTickSeconds {
			idx := windowStart + elapsed
			delta := history[idx].Close.Sub(open)
			coord := bucketing.Bucket(elapsed, delta)
			cell := snap.Matrix.Cell(coord.Time, coord.Delta)

			up := calc.Evaluate(cell, types.Up, backtestMarketPrice)
			down := calc.Evaluate(cell, types.Down, backtestMarketPrice)

			momentumSign := 0
			if delta.IsPositive() {
				momentumSign = 1
			} else if delta.IsNegative() {
				momentumSign = -1
			}
			best := edge.Best(up, down, momentumSign)
			if !best.ShouldBet {
				continue
			}

			size := sizer.Size(best.OurProbability, backtestMarketPrice, best.Confidence, bankroll, false)
			if size.USDC.IsZero() {
				continue
			}

			betsPlaced++
			betThisWindow = true

			shares := size.USDC.Div(decimal.NewFromFloat(backtestMarketPrice))
			var pnl decimal.Decimal
			if best.Direction == outcome {
				wins++
				pnl = shares.Sub(size.USDC)
			} else {
				pnl = size.USDC.Neg()
			}
			realizedPnL = realizedPnL.Add(pnl)
			bankroll = bankroll.Add(pnl)
		}
	}

	fmt.Printf("backtest: %d windows, %d bets placed, %d wins (%.1f%% win rate)\n",
		windows, betsPlaced, wins, winRatePct(wins, betsPlaced))
	fmt.Printf("realized P&L: %s USDC, ending bankroll: %s USDC\n",
		realizedPnL.StringFixed(2), bankroll.StringFixed(2))

	return nil
}

func winRatePct(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(wins) / float64(total)
}
