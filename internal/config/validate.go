package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Scroll.Step <= 0 {
		return fmt.Errorf("scroll.step must be > 0, got %d", cfg.Scroll.Step)
	}
	if cfg.Scroll.Pause < 0 {
		return fmt.Errorf("scroll.pause must be >= 0")
	}
	if cfg.Scroll.MaxRounds <= 0 {
		return fmt.Errorf("scroll.max_rounds must be > 0, got %d", cfg.Scroll.MaxRounds)
	}
	if cfg.Scroll.BottomTolerance < 0 {
		return fmt.Errorf("scroll.bottom_tolerance must be >= 0, got %d", cfg.Scroll.BottomTolerance)
	}
	if cfg.Scroll.StagnantThreshold < 1 {
		return fmt.Errorf("scroll.stagnant_threshold must be >= 1, got %d", cfg.Scroll.StagnantThreshold)
	}

	if cfg.Extract.MaxItems <= 0 {
		return fmt.Errorf("extract.max_items must be > 0, got %d", cfg.Extract.MaxItems)
	}
	if cfg.Extract.WaitTimeout <= 0 {
		return fmt.Errorf("extract.wait_timeout must be > 0")
	}
	if cfg.Extract.ContainerSelector == "" || cfg.Extract.ImageSelector == "" {
		return fmt.Errorf("extract.container_selector and extract.image_selector are required")
	}
	if cfg.Extract.ImageAttribute == "" {
		return fmt.Errorf("extract.image_attribute is required")
	}
	if cfg.Extract.ThinkMin < 0 || cfg.Extract.ThinkMax < 0 {
		return fmt.Errorf("extract think-time bounds must be >= 0")
	}

	if cfg.Download.OutputDir == "" {
		return fmt.Errorf("download.output_dir is required")
	}
	if cfg.Download.ThrottleMin < 0 || cfg.Download.ThrottleMax < 0 {
		return fmt.Errorf("download throttle bounds must be >= 0")
	}
	if cfg.Download.RatePerSecond < 0 {
		return fmt.Errorf("download.rate_per_second must be >= 0")
	}
	if cfg.Download.RatePerSecond > 0 && cfg.Download.Burst < 1 {
		return fmt.Errorf("download.burst must be >= 1 when rate limiting, got %d", cfg.Download.Burst)
	}
	if cfg.Download.Retries < 0 {
		return fmt.Errorf("download.retries must be >= 0, got %d", cfg.Download.Retries)
	}
	if cfg.Download.ChunkSize <= 0 {
		return fmt.Errorf("download.chunk_size must be > 0, got %d", cfg.Download.ChunkSize)
	}
	if cfg.Download.RequestTimeout <= 0 {
		return fmt.Errorf("download.request_timeout must be > 0")
	}

	if cfg.Browser.NavigateTimeout <= 0 {
		return fmt.Errorf("browser.navigate_timeout must be > 0")
	}
	if cfg.Browser.WindowWidth < 0 || cfg.Browser.WindowHeight < 0 {
		return fmt.Errorf("browser window size must be >= 0")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is a usable listing page address.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
