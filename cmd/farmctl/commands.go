package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/abelzeko/mushroom-bot/internal/config"
	"github.com/abelzeko/mushroom-bot/internal/insights"
	"github.com/abelzeko/mushroom-bot/internal/seed"
	"github.com/abelzeko/mushroom-bot/internal/usecases"
	"github.com/spf13/cobra"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			version, err := repo.SchemaVersion(cmd.Context())
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", version)
			return nil
		},
	}
}

func newSeedCmd(flags *rootFlags) *cobra.Command {
	var clearData bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demonstration batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := flags.open(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			res, err := seed.Seed(cmd.Context(), repo, clearData)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			out := cmd.OutOrStdout()
			if res.Skipped {
				fmt.Fprintln(out, "Seed batches already present, use --clear to recreate them")
				return nil
			}
			fmt.Fprintf(out, "Created batches %v: %d observations, %d harvests\n", res.BatchIDs, res.Observations, res.Harvests)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearData, "clear", false, "Delete all existing data first")
	return cmd
}

func insightUseCase(flags *rootFlags, cmd *cobra.Command, thresholdsFile string) (*usecases.InsightUseCase, func(), error) {
	th, err := config.LoadThresholds(thresholdsFile)
	if err != nil {
		return nil, nil, err
	}
	repo, err := flags.open(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return usecases.NewInsightUseCase(repo, insights.NewEngine(th), nil), func() { repo.Close() }, nil
}

func parseBatchID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid batch id %q", s)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newInsightsCmd(flags *rootFlags, thresholdsFile string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "insights <batch-id>",
		Short: "Analyze a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBatchID(args[0])
			if err != nil {
				return err
			}
			uc, closeRepo, err := insightUseCase(flags, cmd, thresholdsFile)
			if err != nil {
				return err
			}
			defer closeRepo()

			report, err := uc.GenerateInsights(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("generate insights: %w", err)
			}
			if asJSON {
				return printJSON(cmd, report)
			}
			fmt.Fprintln(cmd.OutOrStdout(), usecases.FormatReport(id, report))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func newCompareCmd(flags *rootFlags, thresholdsFile string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "compare <batch-id> <batch-id>...",
		Short: "Compare two or more batches",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := parseBatchID(a)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			uc, closeRepo, err := insightUseCase(flags, cmd, thresholdsFile)
			if err != nil {
				return err
			}
			defer closeRepo()

			c, err := uc.CompareBatches(cmd.Context(), ids)
			if err != nil {
				return fmt.Errorf("compare batches: %w", err)
			}
			if asJSON {
				return printJSON(cmd, c)
			}
			fmt.Fprintln(cmd.OutOrStdout(), usecases.FormatComparison(c))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the comparison as JSON")
	return cmd
}
