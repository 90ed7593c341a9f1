package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/imgharvest/internal/automation"
	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/engine"
	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/storage"
	"github.com/IshaanNene/imgharvest/internal/types"
)

var saveHTML string

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [url]",
		Short: "Scroll a listing page, extract product images and optionally download them",
		Long: `Open the listing URL in a browser, scroll until the page stops growing,
extract one record per product container and, after confirmation, download
every referenced image as <index>_<brand>.jpg.`,
		Args: cobra.ExactArgs(1),
		RunE: runScrape,
	}

	addTuningFlags(cmd)
	cmd.Flags().IntVar(&scrollStep, "step", 500, "pixels scrolled per round")
	cmd.Flags().DurationVar(&scrollPause, "pause", config.DefaultConfig().Scroll.Pause, "settle delay after each scroll")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 25, "maximum scroll rounds")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	cmd.Flags().StringVar(&saveHTML, "save-html", "", "write the scrolled page HTML to this file")

	return cmd
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	target := args[0]
	if err := config.ValidateURL(target); err != nil {
		return fmt.Errorf("invalid URL %q: %w", target, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := startMetrics(cfg, logger)

	logger.Info("starting scrape",
		"url", target,
		"max_items", cfg.Extract.MaxItems,
		"max_rounds", cfg.Scroll.MaxRounds,
		"output", cfg.Download.OutputDir,
	)

	session, err := fetcher.NewBrowserSession(ctx, cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer session.Close()

	rodPage, err := session.Open(ctx, target)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	page := automation.NewPage(rodPage, logger)

	httpFetcher := fetcher.NewHTTPFetcher(cfg, logger)
	defer httpFetcher.Close()

	afterExtract := func(ctx context.Context, records []types.ImageRecord) {
		if saveHTML != "" {
			writePageHTML(ctx, page, logger)
		}
		if recordsPath != "" && len(records) > 0 {
			if err := storage.Export(recordsPath, records, logger); err != nil {
				logger.Error("record export failed", "path", recordsPath, "error", err)
			}
		}
	}
	eng := engine.New(cfg, httpFetcher, metrics, logger, engine.WithExtractedHook(afterExtract))

	approve := func(records []types.ImageRecord) bool {
		return confirmDownload(len(records), logger)
	}

	res, err := eng.Run(ctx, page, approve)
	if res != nil {
		eng.LogSummary(res)
		printSummary(res, cfg)
	}
	return err
}
