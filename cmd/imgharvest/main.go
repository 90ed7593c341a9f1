package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/engine"
	"github.com/IshaanNene/imgharvest/internal/observability"
)

var (
	cfgFile      string
	verbose      bool
	outputDir    string
	maxItems     int
	scrollStep   int
	scrollPause  time.Duration
	maxRounds    int
	containerSel string
	imageSel     string
	imageAttr    string
	brandSel     string
	nameSel      string
	userAgent    string
	headless     bool
	assumeYes    bool
	noDownload   bool
	recordsPath  string
	retries      int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "imgharvest",
		Short: "imgharvest: product image scraper for infinite-scroll listings",
		Long: `imgharvest scrolls an infinite-scroll product listing until it stops
growing, extracts one record per product tile (image URL, brand, name) and
optionally downloads the images.

Features:
  • Adaptive scroll termination (bottom reached and height stagnant)
  • CSS and XPath selectors for containers and fields
  • Per-item fault isolation during extraction
  • Throttled, partial-failure-tolerant downloads
  • Record export to JSON, JSONL or CSV and a later download pass
  • Prometheus metrics endpoint`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(downloadCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("imgharvest %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Browser:\n")
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Window:            %dx%d\n", cfg.Browser.WindowWidth, cfg.Browser.WindowHeight)
			fmt.Printf("  Initial Settle:    %s - %s\n", cfg.Browser.SettleMin, cfg.Browser.SettleMax)
			fmt.Printf("  User Agent:        %s\n", cfg.Browser.UserAgent)
			fmt.Printf("\nScroll:\n")
			fmt.Printf("  Step:              %d px\n", cfg.Scroll.Step)
			fmt.Printf("  Pause:             %s\n", cfg.Scroll.Pause)
			fmt.Printf("  Max Rounds:        %d\n", cfg.Scroll.MaxRounds)
			fmt.Printf("  Bottom Tolerance:  %d px\n", cfg.Scroll.BottomTolerance)
			fmt.Printf("  Stagnant Rounds:   %d\n", cfg.Scroll.StagnantThreshold)
			fmt.Printf("\nExtract:\n")
			fmt.Printf("  Max Items:         %d\n", cfg.Extract.MaxItems)
			fmt.Printf("  Wait Timeout:      %s\n", cfg.Extract.WaitTimeout)
			fmt.Printf("  Container:         %s\n", cfg.Extract.ContainerSelector)
			fmt.Printf("  Image:             %s [%s]\n", cfg.Extract.ImageSelector, cfg.Extract.ImageAttribute)
			fmt.Printf("  Brand / Name:      %s / %s\n", cfg.Extract.BrandSelector, cfg.Extract.NameSelector)
			fmt.Printf("\nDownload:\n")
			fmt.Printf("  Output Dir:        %s\n", cfg.Download.OutputDir)
			fmt.Printf("  Throttle:          %s - %s\n", cfg.Download.ThrottleMin, cfg.Download.ThrottleMax)
			fmt.Printf("  Rate Limit:        %.2f/s (burst %d)\n", cfg.Download.RatePerSecond, cfg.Download.Burst)
			fmt.Printf("  Retries:           %d\n", cfg.Download.Retries)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// addTuningFlags registers the flags shared by every command that runs
// the pipeline.
func addTuningFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputDir, "output", "o", "./images", "directory for downloaded images")
	cmd.Flags().IntVarP(&maxItems, "max-items", "m", 100, "maximum product containers to scan")
	cmd.Flags().StringVar(&containerSel, "container", ".product-base", "product container selector (CSS or XPath)")
	cmd.Flags().StringVar(&imageSel, "image", "img", "image selector inside a container")
	cmd.Flags().StringVar(&imageAttr, "image-attr", "src", "attribute holding the image URL")
	cmd.Flags().StringVar(&brandSel, "brand", ".product-brand", "brand selector inside a container")
	cmd.Flags().StringVar(&nameSel, "name", ".product-product", "product name selector inside a container")
	cmd.Flags().StringVar(&recordsPath, "records", "", "export extracted records to this file (.json, .jsonl, .csv)")
	addDownloadFlags(cmd)
}

func addDownloadFlags(cmd *cobra.Command) {
	if cmd.Flags().Lookup("output") == nil {
		cmd.Flags().StringVarP(&outputDir, "output", "o", "./images", "directory for downloaded images")
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "download without asking")
	cmd.Flags().BoolVar(&noDownload, "no-download", false, "never download, only extract")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "override the static User-Agent")
	cmd.Flags().IntVar(&retries, "retries", 0, "extra attempts per image after a transport error")
}

// applyCLIOverrides copies explicitly set flags onto the config so that
// unset flags do not mask config file values.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("output") {
		cfg.Download.OutputDir = outputDir
	}
	if set("max-items") {
		cfg.Extract.MaxItems = maxItems
	}
	if set("step") {
		cfg.Scroll.Step = scrollStep
	}
	if set("pause") {
		cfg.Scroll.Pause = scrollPause
	}
	if set("max-rounds") {
		cfg.Scroll.MaxRounds = maxRounds
	}
	if set("container") {
		cfg.Extract.ContainerSelector = containerSel
	}
	if set("image") {
		cfg.Extract.ImageSelector = imageSel
	}
	if set("image-attr") {
		cfg.Extract.ImageAttribute = imageAttr
	}
	if set("brand") {
		cfg.Extract.BrandSelector = brandSel
	}
	if set("name") {
		cfg.Extract.NameSelector = nameSel
	}
	if set("headless") {
		cfg.Browser.Headless = headless
	}
	if set("retries") {
		cfg.Download.Retries = retries
	}
	if userAgent != "" {
		cfg.Browser.UserAgent = userAgent
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a structured logger.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var (
		w       io.Writer = os.Stderr
		closeFn           = func() error { return nil }
	)
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closeFn, nil
}

// startMetrics starts the metrics server when enabled. The registry is
// used for the run summary either way.
func startMetrics(cfg *config.Config, logger *slog.Logger) *observability.Metrics {
	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}
	return metrics
}

// printSummary writes the human-readable run summary to stdout.
func printSummary(res *engine.Result, cfg *config.Config) {
	s := res.Summary()
	fmt.Printf("\nRun complete in %s\n", s.Elapsed.Round(time.Millisecond))
	if s.Rounds > 0 {
		fmt.Printf("   Scroll:    %d rounds\n", s.Rounds)
	}
	fmt.Printf("   Records:   %d extracted\n", s.Records)
	if res.Downloaded {
		fmt.Printf("   Images:    %d downloaded, %d failed\n", s.Succeeded, s.Failed)
		fmt.Printf("   Data:      %d bytes\n", s.Bytes)
		fmt.Printf("   Output:    %s\n", cfg.Download.OutputDir)
	}
	if recordsPath != "" && s.Records > 0 {
		fmt.Printf("   Records:   %s\n", recordsPath)
	}
	if s.Records == 0 {
		fmt.Println("\nNo records were extracted. Check the --container selector, or raise")
		fmt.Println("extract.wait_timeout if the page renders slowly.")
	}
}
