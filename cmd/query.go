package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mselser95/btc15m-maker/internal/app"
	"github.com/mselser95/btc15m-maker/internal/bucketing"
	"github.com/mselser95/btc15m-maker/internal/edge"
	"github.com/mselser95/btc15m-maker/internal/sizing"
	"github.com/mselser95/btc15m-maker/pkg/config"
	"github.com/mselser95/btc15m-maker/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	querySecondsElapsed int
	queryPriceDelta     float64
	queryMarketPrice    float64
	queryBankroll       float64
)

//nolint:gochecknoglobals // Cobra boilerplate
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print a recommendation for a given window position",
	Long: `query loads the active Matrix snapshot, buckets the given elapsed
seconds and price delta into a cell, and prints the edge, confidence, and
sizing the Decision Engine would produce at that point (spec §6).`,
	RunE: runQuery,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	queryCmd.Flags().IntVarP(&querySecondsElapsed, "seconds-elapsed", "t", 0, "seconds elapsed into the 900s window")
	queryCmd.Flags().Float64VarP(&queryPriceDelta, "price-delta", "p", 0, "current BTC price minus window-open price, in USD")
	queryCmd.Flags().Float64VarP(&queryMarketPrice, "market-price", "m", 0, "market price of the share being evaluated, in (0,1]")
	queryCmd.Flags().Float64VarP(&queryBankroll, "bankroll", "b", 0, "current bankroll in USDC")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	coord := bucketing.Bucket(querySecondsElapsed, decimal.NewFromFloat(queryPriceDelta))
	cell := snap.Matrix.Cell(coord.Time, coord.Delta)

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

	up := calc.Evaluate(cell, types.Up, queryMarketPrice)
	down := calc.Evaluate(cell, types.Down, queryMarketPrice)

	momentumSign := 0
	if queryPriceDelta > 0 {
		momentumSign = 1
	} else if queryPriceDelta < 0 {
		momentumSign = -1
	}
	best := edge.Best(up, down, momentumSign)

	fmt.Printf("cell (t=%d, d=%d): n=%d confidence=%s p_up=%.4f wilson=[%.4f,%.4f]\n",
		coord.Time, coord.Delta, cell.N(), cell.Confidence, cell.PUp, cell.WilsonLower, cell.WilsonUpper)

	if coord.OutOfRange {
		fmt.Println("warning: input clipped to an edge bucket (out of range)")
	}

	if !best.ShouldBet {
		fmt.Printf("recommendation: NO BET (direction=%s edge=%.4f confidence=%s)\n",
			best.Direction, best.Edge, best.Confidence)
		return nil
	}

	result := sizer.Size(best.OurProbability, best.MarketProbability, best.Confidence,
		decimal.NewFromFloat(queryBankroll), false)

	fmt.Printf("recommendation: BUY %s edge=%.4f confidence=%s our_p=%.4f ev_per_unit=%.4f\n",
		best.Direction, best.Edge, best.Confidence, best.OurProbability, best.EVPerUnit)
	fmt.Printf("sizing: kelly_fraction=%.4f used_fraction=%.4f size=%s USDC\n",
		result.KellyFraction, result.UsedFraction, result.USDC.StringFixed(2))

	return nil
}
