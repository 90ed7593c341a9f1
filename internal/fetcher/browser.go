package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// BrowserSession owns one launched browser process. It is opened once per
// run and must be closed by the caller, typically with defer.
type BrowserSession struct {
	cfg      config.BrowserConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	logger   *slog.Logger

	mu     sync.Mutex
	pages  []*rod.Page
	closed bool
}

// NewBrowserSession launches a browser and connects to it.
func NewBrowserSession(ctx context.Context, cfg config.BrowserConfig, logger *slog.Logger) (*BrowserSession, error) {
	bs := &BrowserSession{
		cfg:    cfg,
		logger: logger.With("component", "browser_session"),
	}

	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox")
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	bs.launcher = l

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bs.browser = browser

	bs.logger.Info("browser session ready",
		"headless", cfg.Headless,
		"window", fmt.Sprintf("%dx%d", cfg.WindowWidth, cfg.WindowHeight),
	)
	return bs, nil
}

// Open creates a page with the configured user agent and viewport and
// navigates it to rawURL, waiting for the load event.
func (bs *BrowserSession) Open(ctx context.Context, rawURL string) (*rod.Page, error) {
	bs.mu.Lock()
	if bs.closed || bs.browser == nil {
		bs.mu.Unlock()
		return nil, types.ErrNoBrowser
	}
	bs.mu.Unlock()

	page, err := bs.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("create page: %w", err)}
	}
	bs.track(page)

	if bs.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: bs.cfg.UserAgent}); err != nil {
			bs.logger.Warn("failed to set user agent", "error", err)
		}
	}
	if bs.cfg.WindowWidth > 0 && bs.cfg.WindowHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             bs.cfg.WindowWidth,
			Height:            bs.cfg.WindowHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			bs.logger.Warn("failed to set viewport", "error", err)
		}
	}

	nav := page.Context(ctx)
	if bs.cfg.NavigateTimeout > 0 {
		nav = nav.Timeout(bs.cfg.NavigateTimeout)
		defer nav.CancelTimeout()
	}
	if err := nav.Navigate(rawURL); err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: fmt.Errorf("navigate: %w", err), Retryable: true}
	}
	if err := nav.WaitLoad(); err != nil {
		bs.logger.Warn("page load wait failed, continuing", "url", rawURL, "error", err)
	}

	bs.logger.Info("page opened", "url", rawURL)
	return page.Context(ctx), nil
}

func (bs *BrowserSession) track(p *rod.Page) {
	bs.mu.Lock()
	bs.pages = append(bs.pages, p)
	bs.mu.Unlock()
}

// Close closes every page, the browser and the launched process. It is
// safe to call more than once.
func (bs *BrowserSession) Close() error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.closed {
		return nil
	}
	bs.closed = true

	for _, p := range bs.pages {
		_ = p.Close()
	}
	bs.pages = nil

	var err error
	if bs.browser != nil {
		err = bs.browser.Close()
	}
	if bs.launcher != nil {
		bs.launcher.Cleanup()
	}
	bs.logger.Debug("browser session closed")
	return err
}
