package cmd

import (
	"github.com/spf13/cobra"
)

func GoalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Show or change daily goals",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show daily goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			g := a.MealService.Goals()
			printer().Fprintf(cmd.OutOrStdout(), "%d kcal, %dg carbohydrates, %dg protein\n",
				g.Calories, g.Carbohydrates, g.Protein)
			return nil
		},
	})

	var calories, carbohydrates, protein int
	set := &cobra.Command{
		Use:   "set",
		Short: "Change daily goals; omitted values stay as they are",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			g := a.MealService.Goals()
			flags := cmd.Flags()
			if flags.Changed("calories") {
				g.Calories = calories
			}
			if flags.Changed("carbs") {
				g.Carbohydrates = carbohydrates
			}
			if flags.Changed("protein") {
				g.Protein = protein
			}

			report, err := a.MealService.SetGoals(g)
			if err != nil {
				return err
			}
			printer().Fprintf(cmd.OutOrStdout(), "Goals: %d kcal, %dg carbohydrates, %dg protein\n",
				g.Calories, g.Carbohydrates, g.Protein)
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	set.Flags().IntVar(&calories, "calories", 0, "daily calories (kcal)")
	set.Flags().IntVar(&carbohydrates, "carbs", 0, "daily carbohydrates (g)")
	set.Flags().IntVar(&protein, "protein", 0, "daily protein (g)")
	cmd.AddCommand(set)

	return cmd
}
