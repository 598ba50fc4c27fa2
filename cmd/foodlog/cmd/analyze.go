package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kingst/foodlog/internal/app"
	"github.com/kingst/foodlog/internal/service/analysis"
	"github.com/kingst/foodlog/internal/session"
	"github.com/kingst/foodlog/internal/workflow"
	"github.com/spf13/cobra"
)

type captureOptions struct {
	yes     bool
	changes workflow.Changes
}

func AnalyzeCmd() *cobra.Command {
	var (
		opts                             captureOptions
		description                      string
		calories, carbohydrates, protein int
	)

	cmd := &cobra.Command{
		Use:   "analyze <photo>",
		Short: "Estimate a meal from a photo and save it after review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("description") {
				opts.changes.Description = &description
			}
			if flags.Changed("calories") {
				opts.changes.Calories = &calories
			}
			if flags.Changed("carbs") {
				opts.changes.Carbohydrates = &carbohydrates
			}
			if flags.Changed("protein") {
				opts.changes.Protein = &protein
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			return capture(cmd.Context(), a, args[0], opts, in, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "save without asking")
	cmd.Flags().StringVar(&description, "description", "", "override the description")
	cmd.Flags().IntVar(&calories, "calories", 0, "override calories (kcal)")
	cmd.Flags().IntVar(&carbohydrates, "carbs", 0, "override carbohydrates (g)")
	cmd.Flags().IntVar(&protein, "protein", 0, "override protein (g)")

	return cmd
}

// capture runs one photo through the workflow: analyze, apply overrides,
// then confirm or cancel.
func capture(ctx context.Context, a *app.App, path string, opts captureOptions, in *bufio.Reader, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}

	token, err := session.BearerToken(a.Tokens)
	if err != nil {
		return fmt.Errorf("set SESSION_TOKEN or SESSION_TOKEN_FILE: %w", err)
	}

	p := printer()
	p.Fprintf(out, "Analyzing %s...\n", path)

	err = a.Workflow.AnalyzeImage(ctx, data, token)
	if err != nil {
		msg := a.Workflow.State().Error
		a.Workflow.ClearError()
		if msg == "" {
			msg = analysis.Message(err)
		}
		return errors.New(msg)
	}

	err = a.Workflow.Edit(opts.changes)
	if err != nil {
		a.Workflow.Cancel()
		return err
	}

	pending := a.Workflow.State().Pending
	p.Fprintf(out, "  %s\n", pending.Description)
	p.Fprintf(out, "  %d kcal, %dg carbohydrates, %dg protein (%s confidence)\n",
		pending.Calories, pending.Carbohydrates, pending.Protein, pending.Confidence)

	if !opts.yes && !ask(in, out, "Save this meal? [y/N] ") {
		a.Workflow.Cancel()
		p.Fprintf(out, "Discarded.\n")
		return nil
	}

	meal, report, err := a.Workflow.Confirm()
	if err != nil {
		a.Workflow.Cancel()
		return err
	}
	p.Fprintf(out, "Saved meal %s\n", meal.ID)
	printReport(out, report)
	return nil
}

func ask(in *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
