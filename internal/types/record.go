package types

import (
	"fmt"
	"strings"
)

// ImageRecord is one product image found on a listing page. Records are
// values and are never modified after NewImageRecord returns them.
type ImageRecord struct {
	// SourceURL is the image reference. Never empty.
	SourceURL string `json:"source_url"`

	// BrandLabel is the product brand, or product_<index> when the page
	// did not provide one.
	BrandLabel string `json:"brand"`

	// DisplayName is the product name; may be empty.
	DisplayName string `json:"name"`

	// SequenceIndex is the 0-based scan position of the container the
	// record came from. Skipped containers leave gaps.
	SequenceIndex int `json:"index"`
}

// NewImageRecord builds a record for the container at scan position idx.
func NewImageRecord(idx int, sourceURL, brand, name string) (ImageRecord, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return ImageRecord{}, ErrEmptySource
	}
	brand = strings.TrimSpace(brand)
	if brand == "" {
		brand = FallbackBrand(idx)
	}
	return ImageRecord{
		SourceURL:     sourceURL,
		BrandLabel:    brand,
		DisplayName:   strings.TrimSpace(name),
		SequenceIndex: idx,
	}, nil
}

// FallbackBrand is the placeholder brand for a container without one.
func FallbackBrand(idx int) string {
	return fmt.Sprintf("product_%d", idx)
}
