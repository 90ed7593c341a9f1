package parser

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/imgharvest/internal/types"
)

// IsXPath reports whether selector is an XPath expression rather than a
// CSS selector.
func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "(")
}

// Snapshot is a parsed, static copy of a listing page. It serves the
// extractor from saved HTML without a browser.
type Snapshot struct {
	root *html.Node
}

// ParseSnapshot parses an HTML document.
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Snapshot{root: root}, nil
}

// WaitContainers returns every match for selector. A static document never
// changes, so there is nothing to wait for.
func (s *Snapshot) WaitContainers(ctx context.Context, selector string, _ time.Duration) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := queryAll(s.root, selector)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: selector %q matched nothing", types.ErrNoContentFound, selector)
	}
	nodes := make([]Node, len(matches))
	for i, n := range matches {
		nodes[i] = htmlNode{n: n}
	}
	return nodes, nil
}

// htmlNode adapts *html.Node to Node.
type htmlNode struct {
	n *html.Node
}

func (h htmlNode) Find(selector string) (Node, bool, error) {
	matches, err := queryAll(h.n, selector)
	if err != nil {
		return nil, false, err
	}
	for _, m := range matches {
		if m != h.n {
			return htmlNode{n: m}, true, nil
		}
	}
	return nil, false, nil
}

func (h htmlNode) Text() (string, error) {
	return strings.TrimSpace(htmlquery.InnerText(h.n)), nil
}

func (h htmlNode) Attribute(name string) (string, bool, error) {
	val, ok := goquery.NewDocumentFromNode(h.n).Attr(name)
	return val, ok, nil
}

// queryAll runs a CSS or XPath selector against the subtree rooted at n.
func queryAll(n *html.Node, selector string) ([]*html.Node, error) {
	if IsXPath(selector) {
		nodes, err := htmlquery.QueryAll(n, selector)
		if err != nil {
			return nil, fmt.Errorf("xpath %q: %w", selector, err)
		}
		return nodes, nil
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("css selector %q: %w", selector, err)
	}
	return goquery.NewDocumentFromNode(n).FindMatcher(matcher).Nodes, nil
}
