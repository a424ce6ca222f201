package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"libman/library"
	"libman/metadata"
)

// IntakeResult reports what the intake flow cataloged.
type IntakeResult struct {
	Book     library.Book
	Enriched bool // true when a metadata provider filled at least the lookup stamp
}

// IntakeBook adds physical copies of a title to the catalog. The ISBN usually
// arrives from the barcode scanner, so it is re-validated here regardless of
// origin. Metadata enrichment is opportunistic: provider failure downgrades to
// a log entry and the copies are cataloged anyway.
type IntakeBook struct {
	repo   *library.Repository
	lookup metadata.LookupService
	clock  library.Clock
	log    *zap.Logger
}

func NewIntakeBook(repo *library.Repository, lookup metadata.LookupService, clock library.Clock, log *zap.Logger) *IntakeBook {
	if clock == nil {
		clock = library.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IntakeBook{repo: repo, lookup: lookup, clock: clock, log: log}
}

// Execute catalogs copies additional copies of isbn13. title and author are
// manual overrides; blank fields fall back to existing catalog data and then to
// provider metadata.
func (u *IntakeBook) Execute(ctx context.Context, isbn13 string, copies int, title, author string) (IntakeResult, error) {
	if !library.IsValidISBN13(isbn13) {
		return IntakeResult{}, fmt.Errorf("%w: %q", library.ErrInvalidISBN, isbn13)
	}
	if copies <= 0 {
		return IntakeResult{}, fmt.Errorf("copies must be positive, got %d", copies)
	}

	existing, err := u.repo.FetchBookByISBN(ctx, isbn13)
	if err != nil {
		return IntakeResult{}, err
	}

	var book library.Book
	if existing != nil {
		book = *existing
		book.CopyCount += copies
		book.AvailableCount += copies
	} else {
		book = library.Book{ISBN13: isbn13, CopyCount: copies, AvailableCount: copies}
	}
	if strings.TrimSpace(title) != "" {
		book.Title = title
	}
	if strings.TrimSpace(author) != "" {
		book.Author = &author
	}

	enriched := u.enrich(ctx, &book)

	if strings.TrimSpace(book.Title) == "" {
		return IntakeResult{}, errors.New("title required: no metadata provider knew this ISBN and none was given")
	}
	if err := u.repo.UpsertBooks(ctx, book); err != nil {
		return IntakeResult{}, err
	}
	return IntakeResult{Book: book, Enriched: enriched}, nil
}

// enrich fills blank descriptive fields from the lookup service. Provider
// output is untrusted; it never overwrites data already on the record.
func (u *IntakeBook) enrich(ctx context.Context, book *library.Book) bool {
	if u.lookup == nil {
		return false
	}
	md, err := u.lookup.Lookup(ctx, book.ISBN13)
	if err != nil {
		u.log.Warn("metadata lookup failed",
			zap.String("isbn13", book.ISBN13),
			zap.Error(err))
		return false
	}

	if book.Title == "" && md.Title != "" {
		book.Title = md.Title
	}
	if book.Author == nil && md.Author != "" {
		author := md.Author
		book.Author = &author
	}
	if book.Description == nil && md.Description != "" {
		description := md.Description
		book.Description = &description
	}
	if book.CoverImageURL == nil && md.CoverImageURL != "" {
		cover := md.CoverImageURL
		book.CoverImageURL = &cover
	}
	fetchedAt := u.clock.Now().UnixMilli()
	book.MetadataFetchedAt = &fetchedAt
	return true
}
