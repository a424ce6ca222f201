package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/jmoiron/sqlx"
)

var dialect = goqu.Dialect("sqlite3")

var bookColumns = []any{
	"isbn13", "title", "author", "description", "cover_image_url",
	"copy_count", "available_count", "metadata_fetched_at",
}

type bookRow struct {
	ISBN13            string  `db:"isbn13"`
	Title             string  `db:"title"`
	Author            *string `db:"author"`
	Description       *string `db:"description"`
	CoverImageURL     *string `db:"cover_image_url"`
	CopyCount         int     `db:"copy_count"`
	AvailableCount    int     `db:"available_count"`
	MetadataFetchedAt *int64  `db:"metadata_fetched_at"`
}

func (r bookRow) toModel() Book {
	return Book{
		ISBN13:            r.ISBN13,
		Title:             r.Title,
		Author:            r.Author,
		Description:       r.Description,
		CoverImageURL:     r.CoverImageURL,
		CopyCount:         r.CopyCount,
		AvailableCount:    r.AvailableCount,
		MetadataFetchedAt: r.MetadataFetchedAt,
	}
}

// bookDAO issues single parameterized statements against the books table. Every
// method runs on the queryer it is handed, so calls inside a transaction stay in
// that transaction and never implicitly commit.
type bookDAO struct{}

func (bookDAO) getByISBN(ctx context.Context, q sqlx.ExtContext, isbn13 string) (*Book, error) {
	query, args, err := dialect.From("books").Prepared(true).
		Select(bookColumns...).
		Where(goqu.Ex{"isbn13": isbn13}).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build book lookup: %w", err)
	}

	var row bookRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get book %s: %w", isbn13, err)
	}
	book := row.toModel()
	return &book, nil
}

// listOrdered returns all books ordered by title, case-insensitively.
func (bookDAO) listOrdered(ctx context.Context, q sqlx.ExtContext) ([]Book, error) {
	query, args, err := dialect.From("books").Prepared(true).
		Select(bookColumns...).
		Order(goqu.L("title COLLATE NOCASE").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build book scan: %w", err)
	}

	var rows []bookRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	books := make([]Book, len(rows))
	for i, r := range rows {
		books[i] = r.toModel()
	}
	return books, nil
}

const upsertBookSQL = `
INSERT INTO books (isbn13, title, author, description, cover_image_url, copy_count, available_count, metadata_fetched_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(isbn13) DO UPDATE SET
    title = excluded.title,
    author = excluded.author,
    description = excluded.description,
    cover_image_url = excluded.cover_image_url,
    copy_count = excluded.copy_count,
    available_count = excluded.available_count,
    metadata_fetched_at = excluded.metadata_fetched_at`

func (bookDAO) upsert(ctx context.Context, q sqlx.ExtContext, b Book) error {
	_, err := q.ExecContext(ctx, upsertBookSQL,
		b.ISBN13, b.Title, b.Author, b.Description, b.CoverImageURL,
		b.CopyCount, b.AvailableCount, b.MetadataFetchedAt)
	if err != nil {
		return fmt.Errorf("upsert book %s: %w", b.ISBN13, err)
	}
	return nil
}

func (d bookDAO) upsertAll(ctx context.Context, q sqlx.ExtContext, books []Book) error {
	for _, b := range books {
		if err := d.upsert(ctx, q, b); err != nil {
			return err
		}
	}
	return nil
}

func (bookDAO) updateAvailableCount(ctx context.Context, q sqlx.ExtContext, isbn13 string, availableCount int) error {
	query, args, err := dialect.Update("books").Prepared(true).
		Set(goqu.Record{"available_count": availableCount}).
		Where(goqu.Ex{"isbn13": isbn13}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build available_count update: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update available_count for %s: %w", isbn13, err)
	}
	return nil
}
