package cmd

import (
	"bufio"
	"context"
	"log/slog"

	"github.com/kingst/foodlog/internal/watcher"
	"github.com/spf13/cobra"
)

func WatchCmd() *cobra.Command {
	var opts captureOptions

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Analyze every photo dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			w := watcher.New(args[0], 0, func(ctx context.Context, path string) error {
				err := capture(ctx, a, path, opts, in, out)
				if err != nil {
					// Keep watching; the next photo gets a fresh attempt.
					printer().Fprintf(out, "%s: %v\n", path, err)
					slog.Debug("capture failed", "path", path, "error", err)
				}
				return nil
			})
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "save every estimate without asking")

	return cmd
}
