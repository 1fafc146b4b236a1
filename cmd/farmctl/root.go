package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/abelzeko/mushroom-bot/internal/config"
	"github.com/abelzeko/mushroom-bot/internal/repository"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	dbPath      string
	databaseURL string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "farmctl",
		Short: "Administer the mushroom farming database",
		Long:  "farmctl migrates and seeds the batch database and runs the insight engine\nfrom the command line.",
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			if flags.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&flags.dbPath, "db", cfg.DatabasePath, "SQLite database path")
	f.StringVar(&flags.databaseURL, "database-url", cfg.DatabaseURL, "Postgres connection string, overrides --db")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Log to stderr")

	root.AddCommand(
		newMigrateCmd(flags),
		newSeedCmd(flags),
		newInsightsCmd(flags, cfg.ThresholdsFile),
		newCompareCmd(flags, cfg.ThresholdsFile),
	)
	return root
}

func (f *rootFlags) open(ctx context.Context) (*repository.SQLRepository, error) {
	repo, err := repository.Open(ctx, f.databaseURL, f.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return repo, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
