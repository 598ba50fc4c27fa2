package cmd

import (
	"github.com/spf13/cobra"
)

func TotalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Show today's intake against the daily goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			t := a.MealService.TodayTotals()
			p := printer()
			out := cmd.OutOrStdout()
			p.Fprintf(out, "Meals today:    %d\n", t.Meals)
			p.Fprintf(out, "Calories:       %d / %d kcal (%d remaining)\n", t.Calories, t.Goals.Calories, t.CaloriesRemaining)
			p.Fprintf(out, "Carbohydrates:  %d / %d g\n", t.Carbohydrates, t.Goals.Carbohydrates)
			p.Fprintf(out, "Protein:        %d / %d g\n", t.Protein, t.Goals.Protein)
			return nil
		},
	}
}

func PruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove meals older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report := a.MealService.Prune()
			if len(report.Pruned) == 0 {
				printer().Fprintln(cmd.OutOrStdout(), "Nothing to prune.")
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}
