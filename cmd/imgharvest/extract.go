package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/imgharvest/internal/automation"
	"github.com/IshaanNene/imgharvest/internal/engine"
	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/parser"
	"github.com/IshaanNene/imgharvest/internal/storage"
)

// extractCmd creates the "extract" subcommand.
func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [file.html]",
		Short: "Extract product image records from a saved listing page",
		Long: `Run the record extractor against a static HTML snapshot (for example one
written by "scrape --save-html"). No browser is started and no scrolling
happens; downloads follow the same confirmation rules as scrape.`,
		Args: cobra.ExactArgs(1),
		RunE: runExtract,
	}
	addTuningFlags(cmd)
	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	snap, err := parser.ParseSnapshot(f)
	f.Close()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := startMetrics(cfg, logger)
	httpFetcher := fetcher.NewHTTPFetcher(cfg, logger)
	defer httpFetcher.Close()

	eng := engine.New(cfg, httpFetcher, metrics, logger)
	start := time.Now()
	res := &engine.Result{}

	res.Records, err = eng.Extract(ctx, snap)
	if err == nil && len(res.Records) > 0 {
		if recordsPath != "" {
			if xerr := storage.Export(recordsPath, res.Records, logger); xerr != nil {
				logger.Error("record export failed", "path", recordsPath, "error", xerr)
			}
		}
		if confirmDownload(len(res.Records), logger) {
			res.Outcomes, err = eng.Download(ctx, res.Records)
			res.Downloaded = true
		}
	}

	res.Elapsed = time.Since(start)
	eng.LogSummary(res)
	printSummary(res, cfg)
	return err
}

// writePageHTML saves the current page DOM to the --save-html path.
func writePageHTML(ctx context.Context, page *automation.Page, logger *slog.Logger) {
	html, err := page.HTML(ctx)
	if err != nil {
		logger.Warn("could not read page html", "error", err)
		return
	}
	if err := os.WriteFile(saveHTML, []byte(html), 0o644); err != nil {
		logger.Warn("could not save page html", "path", saveHTML, "error", err)
		return
	}
	logger.Info("page html saved", "path", saveHTML, "bytes", len(html))
}
