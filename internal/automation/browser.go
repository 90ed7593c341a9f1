package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"

	"github.com/IshaanNene/imgharvest/internal/parser"
	"github.com/IshaanNene/imgharvest/internal/types"
)

const scrollMetricsJS = `() => ({
	h: Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight),
	y: window.pageYOffset,
	vh: window.innerHeight
})`

// Page drives a live rod page for the scroll controller and the record
// extractor.
type Page struct {
	page   *rod.Page
	logger *slog.Logger
}

var (
	_ Scroller               = (*Page)(nil)
	_ parser.ContainerSource = (*Page)(nil)
)

// NewPage wraps a rod page that has already been navigated.
func NewPage(page *rod.Page, logger *slog.Logger) *Page {
	return &Page{
		page:   page,
		logger: logger.With("component", "browser_page"),
	}
}

// ScrollMetrics reads document height, vertical offset and viewport height.
func (p *Page) ScrollMetrics(ctx context.Context) (ScrollMetrics, error) {
	res, err := p.page.Context(ctx).Eval(scrollMetricsJS)
	if err != nil {
		return ScrollMetrics{}, fmt.Errorf("read scroll metrics: %w", err)
	}
	return ScrollMetrics{
		DocumentHeight: res.Value.Get("h").Int(),
		ViewportOffset: res.Value.Get("y").Int(),
		ViewportHeight: res.Value.Get("vh").Int(),
	}, nil
}

// ScrollBy scrolls the window down by px.
func (p *Page) ScrollBy(ctx context.Context, px int) error {
	if _, err := p.page.Context(ctx).Eval(`(dy) => window.scrollBy(0, dy)`, px); err != nil {
		return fmt.Errorf("scroll by %d: %w", px, err)
	}
	return nil
}

// WaitContainers waits until selector matches and returns every match.
// XPath and CSS selectors are both accepted.
func (p *Page) WaitContainers(ctx context.Context, selector string, timeout time.Duration) ([]parser.Node, error) {
	waiter := p.page.Context(ctx)
	if timeout > 0 {
		waiter = waiter.Timeout(timeout)
		defer waiter.CancelTimeout()
	}

	var err error
	if parser.IsXPath(selector) {
		_, err = waiter.ElementX(selector)
	} else {
		_, err = waiter.Element(selector)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %q after %s", types.ErrNoContentFound, selector, timeout)
		}
		return nil, fmt.Errorf("wait for %q: %w", selector, err)
	}

	var els rod.Elements
	if parser.IsXPath(selector) {
		els, err = p.page.Context(ctx).ElementsX(selector)
	} else {
		els, err = p.page.Context(ctx).Elements(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("query containers %q: %w", selector, err)
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %q", types.ErrNoContentFound, selector)
	}

	nodes := make([]parser.Node, len(els))
	for i, el := range els {
		nodes[i] = elementNode{el: el}
	}
	p.logger.Debug("containers located", "selector", selector, "count", len(nodes))
	return nodes, nil
}

// HTML returns the page's current serialized DOM.
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// elementNode adapts a rod element to parser.Node.
type elementNode struct {
	el *rod.Element
}

func (n elementNode) Find(selector string) (parser.Node, bool, error) {
	var (
		ok    bool
		child *rod.Element
		err   error
	)
	if parser.IsXPath(selector) {
		ok, child, err = n.el.HasX(selector)
	} else {
		ok, child, err = n.el.Has(selector)
	}
	if err != nil || !ok {
		return nil, false, err
	}
	return elementNode{el: child}, true, nil
}

func (n elementNode) Text() (string, error) {
	return n.el.Text()
}

func (n elementNode) Attribute(name string) (string, bool, error) {
	v, err := n.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}
