// Package catalog defines the immutable product record model and the JSONL
// catalog source the indexes are built from.
package catalog

import (
	"fmt"

	apperrors "github.com/crauzier/catalogsearch/pkg/errors"
)

// Review is a single customer review. Reviews are ordered oldest-first in
// the record, so the last entry is the most recent rating.
type Review struct {
	Rating float64 `json:"rating"`
	Date   string  `json:"date,omitempty"`
}

// Product is one catalog record, identified by its canonical URL. Only URL
// and Title are required; everything else defaults to empty.
type Product struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Features    map[string]string `json:"product_features,omitempty"`
	Reviews     []Review          `json:"product_reviews,omitempty"`
}

// Validate reports whether the record can be indexed. A record without a
// URL has no identity and cannot be stored.
func (p Product) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("record %q has no url: %w", p.Title, apperrors.ErrMalformedRecord)
	}
	return nil
}

// Brand returns the product's brand feature value, or "".
func (p Product) Brand() string {
	return p.Features["brand"]
}

// Origin returns the product's origin feature value, or "".
func (p Product) Origin() string {
	return p.Features["origin"]
}
