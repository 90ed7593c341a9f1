package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultUserAgent is the static user agent presented to listing pages and
// asset hosts.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0"

// Config is the root configuration for imgharvest.
type Config struct {
	Browser  BrowserConfig  `mapstructure:"browser"  yaml:"browser"`
	Scroll   ScrollConfig   `mapstructure:"scroll"   yaml:"scroll"`
	Extract  ExtractConfig  `mapstructure:"extract"  yaml:"extract"`
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// BrowserConfig controls the headless browser session.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"         yaml:"headless"`
	Bin             string        `mapstructure:"bin"              yaml:"bin"`
	UserAgent       string        `mapstructure:"user_agent"       yaml:"user_agent"`
	WindowWidth     int           `mapstructure:"window_width"     yaml:"window_width"`
	WindowHeight    int           `mapstructure:"window_height"    yaml:"window_height"`
	NavigateTimeout time.Duration `mapstructure:"navigate_timeout" yaml:"navigate_timeout"`
	SettleMin       time.Duration `mapstructure:"settle_min"       yaml:"settle_min"`
	SettleMax       time.Duration `mapstructure:"settle_max"       yaml:"settle_max"`
}

// ScrollConfig controls the scroll controller.
type ScrollConfig struct {
	Step              int           `mapstructure:"step"               yaml:"step"`
	Pause             time.Duration `mapstructure:"pause"              yaml:"pause"`
	MaxRounds         int           `mapstructure:"max_rounds"         yaml:"max_rounds"`
	BottomTolerance   int           `mapstructure:"bottom_tolerance"   yaml:"bottom_tolerance"`
	StagnantThreshold int           `mapstructure:"stagnant_threshold" yaml:"stagnant_threshold"`
}

// ExtractConfig controls the record extractor.
type ExtractConfig struct {
	MaxItems          int           `mapstructure:"max_items"          yaml:"max_items"`
	WaitTimeout       time.Duration `mapstructure:"wait_timeout"       yaml:"wait_timeout"`
	ContainerSelector string        `mapstructure:"container_selector" yaml:"container_selector"`
	ImageSelector     string        `mapstructure:"image_selector"     yaml:"image_selector"`
	ImageAttribute    string        `mapstructure:"image_attribute"    yaml:"image_attribute"`
	BrandSelector     string        `mapstructure:"brand_selector"     yaml:"brand_selector"`
	NameSelector      string        `mapstructure:"name_selector"      yaml:"name_selector"`
	ThinkMin          time.Duration `mapstructure:"think_min"          yaml:"think_min"`
	ThinkMax          time.Duration `mapstructure:"think_max"          yaml:"think_max"`
}

// DownloadConfig controls the asset fetcher.
type DownloadConfig struct {
	OutputDir       string        `mapstructure:"output_dir"        yaml:"output_dir"`
	ThrottleMin     time.Duration `mapstructure:"throttle_min"      yaml:"throttle_min"`
	ThrottleMax     time.Duration `mapstructure:"throttle_max"      yaml:"throttle_max"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"   yaml:"rate_per_second"`
	Burst           int           `mapstructure:"burst"             yaml:"burst"`
	Retries         int           `mapstructure:"retries"           yaml:"retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"       yaml:"retry_delay"`
	ChunkSize       int           `mapstructure:"chunk_size"        yaml:"chunk_size"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:        true,
			UserAgent:       DefaultUserAgent,
			WindowWidth:     1920,
			WindowHeight:    1080,
			NavigateTimeout: 60 * time.Second,
			SettleMin:       3 * time.Second,
			SettleMax:       5 * time.Second,
		},
		Scroll: ScrollConfig{
			Step:              500,
			Pause:             2 * time.Second,
			MaxRounds:         25,
			BottomTolerance:   100,
			StagnantThreshold: 3,
		},
		Extract: ExtractConfig{
			MaxItems:          100,
			WaitTimeout:       10 * time.Second,
			ContainerSelector: ".product-base",
			ImageSelector:     "img",
			ImageAttribute:    "src",
			BrandSelector:     ".product-brand",
			NameSelector:      ".product-product",
			ThinkMin:          100 * time.Millisecond,
			ThinkMax:          300 * time.Millisecond,
		},
		Download: DownloadConfig{
			OutputDir:       "./images",
			ThrottleMin:     1 * time.Second,
			ThrottleMax:     2 * time.Second,
			RatePerSecond:   0,
			Burst:           1,
			Retries:         0,
			RetryDelay:      2 * time.Second,
			ChunkSize:       1024,
			RequestTimeout:  60 * time.Second,
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
