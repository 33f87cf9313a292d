package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mselser95/btc15m-maker/internal/app"
	"github.com/mselser95/btc15m-maker/internal/candles"
	"github.com/mselser95/btc15m-maker/internal/matrix"
	"github.com/mselser95/btc15m-maker/pkg/config"
)

// uniformBetaPrior is the default Beta(alpha, beta) prior applied when
// recomputing cell statistics: alpha=beta=1 is the uninformative uniform
// prior over [0,1].
const uniformBetaPrior = 1.0

//nolint:gochecknoglobals // Cobra boilerplate
var buildHistoryPath string

//nolint:gochecknoglobals // Cobra boilerplate
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a probability Matrix from historical BTC candles and persist it",
	Long: `build reads a CSV of 1-second BTC/USD OHLC candles, folds them into a
Matrix per window (spec §4.C), persists the result as the new active
snapshot, and prints a summary report.`,
	RunE: runBuild,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	buildCmd.Flags().StringVar(&buildHistoryPath, "history", "", "path to a CSV of 1-second BTC/USD OHLC candles (required)")
	_ = buildCmd.MarkFlagRequired("history")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
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

	history, err := candles.LoadCSV(buildHistoryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "candle history error: %v\n", err)
		os.Exit(exitConfigError)
	}

	report := matrix.Build(history, uniformBetaPrior, uniformBetaPrior)
	if report.WindowsObserved == 0 {
		fmt.Fprintln(os.Stderr, "no complete windows in candle history; nothing to persist")
		os.Exit(exitDataInsufficient)
	}

	ctx := context.Background()
	store, err := app.OpenMatrixStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "matrix store error: %v\n", err)
		os.Exit(exitPersistenceError)
	}
	defer store.Close() //nolint:errcheck // best-effort close on exit

	id, err := store.Save(ctx, report.Matrix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "persist matrix error: %v\n", err)
		os.Exit(exitPersistenceError)
	}

	fmt.Printf("snapshot %d saved: %d windows observed, %d disqualified, span %s to %s\n",
		id, report.WindowsObserved, report.DisqualifiedWindows, report.SpanStart.Format("2006-01-02T15:04:05Z"), report.SpanEnd.Format("2006-01-02T15:04:05Z"))

	return nil
}
