package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/kingst/foodlog/internal/config"
	"github.com/kingst/foodlog/internal/devserver"
	"github.com/kingst/foodlog/internal/logger"
	"github.com/kingst/foodlog/internal/middleware"
	"github.com/spf13/cobra"
)

func main() {
	var (
		addr      string
		tokens    []string
		publicURL string
	)

	rootCmd := &cobra.Command{
		Use:   "devserver",
		Short: "Local stand-in for the remote food analysis service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(true, "")

			srv := devserver.New(devserver.Config{
				Secret:    cfg.DevServerSecret,
				Tokens:    tokens,
				PublicURL: publicURL,
			})

			server := &http.Server{
				Addr:              addr,
				Handler:           middleware.Chain(srv.Handler(), middleware.RequestLogging),
				ReadHeaderTimeout: 10 * time.Second,
			}

			slog.Info("analysis devserver starting", "addr", addr, "restricted_tokens", len(tokens) > 0)
			return server.ListenAndServe()
		},
	}

	rootCmd.Flags().StringVar(&addr, "addr", ":8091", "listen address")
	rootCmd.Flags().StringSliceVar(&tokens, "token", nil, "accepted bearer token, repeatable (none accepts any)")
	rootCmd.Flags().StringVar(&publicURL, "public-url", "", "base URL used in issued upload URLs")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
