// Package metadata fetches descriptive book fields from external ISBN catalogs.
// Everything returned here is untrusted input: callers validate it the same way
// they validate manual entry.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Metadata carries the optional descriptive fields a provider may know for an
// ISBN. Blank means the provider had nothing for that field.
type Metadata struct {
	ISBN13        string
	Title         string
	Author        string
	Publisher     string
	PublishedDate string
	Description   string
	CoverImageURL string
}

// LookupService resolves metadata for a single ISBN-13.
type LookupService interface {
	Lookup(ctx context.Context, isbn13 string) (Metadata, error)
}

// ErrNoMetadata indicates that no provider returned a usable result. This is a
// recoverable, user-visible condition, not a fatal one.
var ErrNoMetadata = errors.New("no metadata found")

// Composite queries providers in priority order and merges their answers
// first-non-blank-wins per field. Individual provider failures are logged and
// skipped; only a total miss is an error.
type Composite struct {
	providers []LookupService
	log       *zap.Logger
}

// NewComposite builds a composite over providers in descending priority.
func NewComposite(log *zap.Logger, providers ...LookupService) *Composite {
	if log == nil {
		log = zap.NewNop()
	}
	return &Composite{providers: providers, log: log}
}

func (c *Composite) Lookup(ctx context.Context, isbn13 string) (Metadata, error) {
	var results []Metadata
	for _, p := range c.providers {
		md, err := p.Lookup(ctx, isbn13)
		if err != nil {
			c.log.Debug("metadata provider miss",
				zap.String("isbn13", isbn13),
				zap.Error(err))
			continue
		}
		results = append(results, md)
	}
	if len(results) == 0 {
		return Metadata{}, fmt.Errorf("%w: ISBN %s", ErrNoMetadata, isbn13)
	}
	return merge(isbn13, results), nil
}

func merge(isbn13 string, sources []Metadata) Metadata {
	merged := Metadata{ISBN13: isbn13}
	for _, src := range sources {
		fill(&merged.Title, src.Title)
		fill(&merged.Author, src.Author)
		fill(&merged.Publisher, src.Publisher)
		fill(&merged.PublishedDate, src.PublishedDate)
		fill(&merged.Description, src.Description)
		fill(&merged.CoverImageURL, src.CoverImageURL)
	}
	return merged
}

func fill(dst *string, candidate string) {
	if *dst == "" && strings.TrimSpace(candidate) != "" {
		*dst = candidate
	}
}
