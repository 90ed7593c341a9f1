package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/pacing"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// Node is one element of a rendered or parsed page.
type Node interface {
	// Find returns the first descendant matching selector. ok is false
	// when nothing matches.
	Find(selector string) (node Node, ok bool, err error)

	// Text returns the element's text content.
	Text() (string, error)

	// Attribute returns the named attribute. ok is false when it is unset.
	Attribute(name string) (value string, ok bool, err error)
}

// ContainerSource lists product containers on a page.
type ContainerSource interface {
	// WaitContainers blocks up to timeout until at least one element
	// matches selector and returns all matches in document order. It
	// returns an error wrapping types.ErrNoContentFound when none appear.
	WaitContainers(ctx context.Context, selector string, timeout time.Duration) ([]Node, error)
}

// Selectors locate the parts of a product tile.
type Selectors struct {
	Container      string
	Image          string
	ImageAttribute string
	Brand          string
	Name           string
}

// ExtractorOptions configures a RecordExtractor.
type ExtractorOptions struct {
	Selectors   Selectors
	WaitTimeout time.Duration

	// ThinkTime is the pause between scanned containers.
	ThinkTime pacing.Policy
}

// RecordExtractor turns product containers into image records. A failure
// in one container, or in one optional field, never aborts the batch.
type RecordExtractor struct {
	opts    ExtractorOptions
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRecordExtractor creates a record extractor.
func NewRecordExtractor(opts ExtractorOptions, metrics *observability.Metrics, logger *slog.Logger) *RecordExtractor {
	if opts.Selectors.ImageAttribute == "" {
		opts.Selectors.ImageAttribute = "src"
	}
	return &RecordExtractor{
		opts:    opts,
		metrics: metrics,
		logger:  logger.With("component", "record_extractor"),
	}
}

// Extract scans up to maxItems containers in document order and returns
// one record per container with an image. SequenceIndex is the scan
// position, so skipped containers leave gaps.
//
// When no container appears within the wait window the error wraps
// types.ErrNoContentFound and the record slice is empty; callers treat it
// as an empty page. Other errors, such as an invalid container selector or
// context cancellation, are returned as is.
func (e *RecordExtractor) Extract(ctx context.Context, src ContainerSource, maxItems int) ([]types.ImageRecord, error) {
	containers, err := src.WaitContainers(ctx, e.opts.Selectors.Container, e.opts.WaitTimeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, types.ErrNoContentFound) {
			err = fmt.Errorf("%w: %v", types.ErrNoContentFound, err)
		}
		if !errors.Is(err, types.ErrNoContentFound) {
			e.logger.Error("container query failed",
				"selector", e.opts.Selectors.Container,
				"error", err,
			)
			return nil, fmt.Errorf("wait for containers: %w", err)
		}
		e.logger.Warn("no product containers found",
			"selector", e.opts.Selectors.Container,
			"error", err,
		)
		return nil, err
	}

	e.logger.Info("product containers found", "count", len(containers))
	if maxItems > 0 && len(containers) > maxItems {
		containers = containers[:maxItems]
	}

	records := make([]types.ImageRecord, 0, len(containers))
	for idx, container := range containers {
		if idx > 0 {
			if err := pacing.Wait(ctx, e.opts.ThinkTime, idx); err != nil {
				return records, err
			}
		}
		e.metrics.ItemsScanned.Inc()

		rec, ok, err := e.extractItem(idx, container)
		if err != nil {
			e.metrics.ItemsFailed.Inc()
			e.logger.Warn("item extraction failed", "index", idx, "error", err)
			continue
		}
		if !ok {
			e.metrics.ItemsSkipped.Inc()
			e.logger.Debug("item has no image, skipped", "index", idx)
			continue
		}

		e.metrics.ItemsEmitted.Inc()
		records = append(records, rec)
		e.logger.Debug("item extracted",
			"index", idx,
			"brand", rec.BrandLabel,
			"url", truncate(rec.SourceURL, 60),
		)
	}

	return records, nil
}

// extractItem reads one container. ok is false when the container has no
// usable image; err is an *types.ItemExtractionError when reading the
// image itself failed.
func (e *RecordExtractor) extractItem(idx int, container Node) (types.ImageRecord, bool, error) {
	sel := e.opts.Selectors

	img, found, err := container.Find(sel.Image)
	if err != nil {
		return types.ImageRecord{}, false, &types.ItemExtractionError{Index: idx, Field: "image", Err: err}
	}
	if !found {
		return types.ImageRecord{}, false, nil
	}
	src, found, err := img.Attribute(sel.ImageAttribute)
	if err != nil {
		return types.ImageRecord{}, false, &types.ItemExtractionError{Index: idx, Field: sel.ImageAttribute, Err: err}
	}
	if !found || strings.TrimSpace(src) == "" {
		return types.ImageRecord{}, false, nil
	}

	brand := e.optionalText(idx, container, "brand", sel.Brand)
	name := e.optionalText(idx, container, "name", sel.Name)

	rec, err := types.NewImageRecord(idx, src, brand, name)
	if err != nil {
		return types.ImageRecord{}, false, nil
	}
	return rec, true, nil
}

// optionalText reads a secondary field. Any failure yields "".
func (e *RecordExtractor) optionalText(idx int, container Node, field, selector string) string {
	if selector == "" {
		return ""
	}
	node, found, err := container.Find(selector)
	if err != nil {
		e.logger.Debug("optional field unreadable", "index", idx, "field", field, "error", err)
		return ""
	}
	if !found {
		return ""
	}
	text, err := node.Text()
	if err != nil {
		e.logger.Debug("optional field unreadable", "index", idx, "field", field, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
