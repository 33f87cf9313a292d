package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mselser95/btc15m-maker/internal/app"
	"github.com/mselser95/btc15m-maker/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var statsTopN int

//nolint:gochecknoglobals // Cobra boilerplate
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print Matrix health: coverage, sparse cells, most-biased cells",
	Long: `stats loads the active Matrix snapshot and prints coverage (cells with
a sample count), the count of cells with n<10 (Unreliable), and the cells
whose posterior mean sits furthest from 0.5 (spec §6).`,
	RunE: runStats,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	statsCmd.Flags().IntVar(&statsTopN, "top", 10, "number of most-biased cells to print")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	m := snap.Matrix
	totalCells := len(m.Cells)
	sparse := 0
	covered := 0
	for _, c := range m.Cells {
		if c.N() > 0 {
			covered++
		}
		if c.N() < 10 {
			sparse++
		}
	}

	fmt.Printf("snapshot %d, saved %s\n", snap.ID, snap.SavedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("windows observed: %d, disqualified: %d, span %s to %s\n",
		m.Meta.TotalWindowsObserved, m.Meta.DisqualifiedWindows,
		m.Meta.DataSpanStart.Format("2006-01-02T15:04:05Z"), m.Meta.DataSpanEnd.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("coverage: %d/%d cells with n>0 (%.1f%%)\n", covered, totalCells, 100*float64(covered)/float64(totalCells))
	fmt.Printf("sparse cells (n<10, Unreliable): %d/%d (%.1f%%)\n", sparse, totalCells, 100*float64(sparse)/float64(totalCells))

	cells := make([]struct {
		time, delta int
		n           int64
		bias        float64
		posterior   float64
	}, 0, totalCells)
	for _, c := range m.Cells {
		if c.N() == 0 {
			continue
		}
		cells = append(cells, struct {
			time, delta int
			n           int64
			bias        float64
			posterior   float64
		}{int(c.Time), int(c.Delta), c.N(), math.Abs(c.PosteriorMean - 0.5), c.PosteriorMean})
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].bias > cells[j].bias })

	n := statsTopN
	if n > len(cells) {
		n = len(cells)
	}
	fmt.Printf("top %d most-biased cells (by |posterior_mean - 0.5|):\n", n)
	for i := 0; i < n; i++ {
		c := cells[i]
		fmt.Printf("  (t=%d, d=%d) n=%d posterior_mean=%.4f bias=%.4f\n", c.time, c.delta, c.n, c.posterior, c.bias)
	}

	return nil
}
