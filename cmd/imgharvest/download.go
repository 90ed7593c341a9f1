package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/imgharvest/internal/engine"
	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/storage"
)

// downloadCmd creates the "download" subcommand.
func downloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [records.json]",
		Short: "Download the images listed in an exported records file",
		Args:  cobra.ExactArgs(1),
		RunE:  runDownload,
	}
	addDownloadFlags(cmd)
	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	records, err := storage.Load(args[0])
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	logger.Info("records loaded", "path", args[0], "count", len(records))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpFetcher := fetcher.NewHTTPFetcher(cfg, logger)
	defer httpFetcher.Close()
	eng := engine.New(cfg, httpFetcher, startMetrics(cfg, logger), logger)

	start := time.Now()
	res := &engine.Result{Records: records}
	if len(records) > 0 && confirmDownload(len(records), logger) {
		res.Outcomes, err = eng.Download(ctx, records)
		res.Downloaded = true
	}
	res.Elapsed = time.Since(start)

	eng.LogSummary(res)
	printSummary(res, cfg)
	return err
}
