package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mselser95/btc15m-maker/internal/app"
	"github.com/mselser95/btc15m-maker/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the live bot",
	Long: `Run loads configuration from the environment, builds every
collaborator and component, and blocks running the Decision Engine's tick
loop until a shutdown signal arrives.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
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

	application, err := app.New(cfg, logger, &app.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		os.Exit(exitConfigError)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "run error: %v\n", err)
		os.Exit(exitPersistenceError)
	}

	return nil
}
