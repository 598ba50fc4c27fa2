package cmd

import (
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func MealsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meals",
		Short: "List or delete saved meals",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List meals, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			meals := a.MealService.Meals()
			p := printer()
			if len(meals) == 0 {
				p.Fprintln(cmd.OutOrStdout(), "No meals in the last week.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			p.Fprintln(tw, "ID\tWHEN\tKCAL\tCARBS\tPROTEIN\tPHOTO\tDESCRIPTION")
			for _, m := range meals {
				photo := "-"
				if m.HasImage() {
					photo = "yes"
				}
				p.Fprintf(tw, "%s\t%s\t%d\t%dg\t%dg\t%s\t%s\n",
					m.ID,
					m.Date.Local().Format("Mon Jan 2 15:04"),
					m.CaloriesInKcal,
					m.CarbohydratesInGrams,
					m.ProteinInGrams,
					photo,
					m.Description,
				)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a meal and its photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.MealService.Delete(args[0])
			if err != nil {
				return err
			}
			printer().Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	})

	return cmd
}
