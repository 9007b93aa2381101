// Command grimoire serves and manages the catalog collections: spells,
// students, creatures and quests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose   bool
	seedPath  string
	traceFile string

	// Logger
	logger *zap.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "grimoire",
		Short: "Filtered catalog service for spells, students, creatures and quests",
		Long: `grimoire keeps ordered record collections, derives filtered, sorted and
paginated views of them and serves those views over HTTP.

Storage is selected through GRIMOIRE_STORAGE_DRIVER (memory, sqlite, postgres)
and exports are written to the blob store chosen by GRIMOIRE_BLOB_DRIVER
(fs, s3, memory).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logger != nil {
				return nil
			}
			config := zap.NewProductionConfig()
			if verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&seedPath, "seed", "", "Seed document (JSON or YAML) used when storage is empty")
	root.PersistentFlags().StringVar(&traceFile, "trace-file", "", "Append JSON trace spans to this file")

	root.AddCommand(newServeCmd(), newListCmd(), newSeedCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
