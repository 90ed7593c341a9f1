package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("IMGHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("imgharvest")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".imgharvest"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.user_agent", cfg.Browser.UserAgent)
	v.SetDefault("browser.window_width", cfg.Browser.WindowWidth)
	v.SetDefault("browser.window_height", cfg.Browser.WindowHeight)
	v.SetDefault("browser.navigate_timeout", cfg.Browser.NavigateTimeout)
	v.SetDefault("browser.settle_min", cfg.Browser.SettleMin)
	v.SetDefault("browser.settle_max", cfg.Browser.SettleMax)

	v.SetDefault("scroll.step", cfg.Scroll.Step)
	v.SetDefault("scroll.pause", cfg.Scroll.Pause)
	v.SetDefault("scroll.max_rounds", cfg.Scroll.MaxRounds)
	v.SetDefault("scroll.bottom_tolerance", cfg.Scroll.BottomTolerance)
	v.SetDefault("scroll.stagnant_threshold", cfg.Scroll.StagnantThreshold)

	v.SetDefault("extract.max_items", cfg.Extract.MaxItems)
	v.SetDefault("extract.wait_timeout", cfg.Extract.WaitTimeout)
	v.SetDefault("extract.container_selector", cfg.Extract.ContainerSelector)
	v.SetDefault("extract.image_selector", cfg.Extract.ImageSelector)
	v.SetDefault("extract.image_attribute", cfg.Extract.ImageAttribute)
	v.SetDefault("extract.brand_selector", cfg.Extract.BrandSelector)
	v.SetDefault("extract.name_selector", cfg.Extract.NameSelector)
	v.SetDefault("extract.think_min", cfg.Extract.ThinkMin)
	v.SetDefault("extract.think_max", cfg.Extract.ThinkMax)

	v.SetDefault("download.output_dir", cfg.Download.OutputDir)
	v.SetDefault("download.throttle_min", cfg.Download.ThrottleMin)
	v.SetDefault("download.throttle_max", cfg.Download.ThrottleMax)
	v.SetDefault("download.rate_per_second", cfg.Download.RatePerSecond)
	v.SetDefault("download.burst", cfg.Download.Burst)
	v.SetDefault("download.retries", cfg.Download.Retries)
	v.SetDefault("download.retry_delay", cfg.Download.RetryDelay)
	v.SetDefault("download.chunk_size", cfg.Download.ChunkSize)
	v.SetDefault("download.request_timeout", cfg.Download.RequestTimeout)
	v.SetDefault("download.idle_conn_timeout", cfg.Download.IdleConnTimeout)
	v.SetDefault("download.max_idle_conns", cfg.Download.MaxIdleConns)
	v.SetDefault("download.tls_insecure", cfg.Download.TLSInsecure)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
