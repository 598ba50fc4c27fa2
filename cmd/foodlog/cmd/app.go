package cmd

import (
	"fmt"
	"io"

	"github.com/kingst/foodlog/internal/app"
	"github.com/kingst/foodlog/internal/config"
	"github.com/kingst/foodlog/internal/logger"
	"github.com/kingst/foodlog/internal/service"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// openApp loads configuration and wires the stores the same way the server does.
func openApp() (*app.App, error) {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	a, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}

func printer() *message.Printer {
	return message.NewPrinter(language.English)
}

// printReport tells the user about local writes that did not stick.
func printReport(out io.Writer, report *service.Report) {
	if report == nil {
		return
	}
	p := printer()
	if n := len(report.Pruned); n > 0 {
		p.Fprintf(out, "Removed %d meal(s) older than the retention window\n", n)
	}
	for _, f := range report.BlobFailures {
		p.Fprintf(out, "warning: image %s for meal %s failed: %v\n", f.Op, f.MealID, f.Err)
	}
	if report.PersistErr != nil {
		p.Fprintf(out, "warning: changes kept in memory only: %v\n", report.PersistErr)
	}
}
