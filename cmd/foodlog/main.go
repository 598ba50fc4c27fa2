package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/kingst/foodlog/cmd/foodlog/cmd"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "foodlog",
		Short:        "Photograph meals, review the estimate, keep a week of history",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.AnalyzeCmd())
	rootCmd.AddCommand(cmd.WatchCmd())
	rootCmd.AddCommand(cmd.MealsCmd())
	rootCmd.AddCommand(cmd.GoalsCmd())
	rootCmd.AddCommand(cmd.TotalsCmd())
	rootCmd.AddCommand(cmd.PruneCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
