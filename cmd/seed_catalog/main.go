// Command seed_catalog bulk-loads a JSON catalog file into the library
// database: books and patrons in one pass, reporting per-row failures.
//
// Usage: seed_catalog [-db libman.db] catalog.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"libman/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type seedBook struct {
	ISBN13         string  `json:"isbn13"`
	Title          string  `json:"title"`
	Author         *string `json:"author"`
	Description    *string `json:"description"`
	CoverImageURL  *string `json:"cover_image_url"`
	CopyCount      int     `json:"copy_count"`
	AvailableCount *int    `json:"available_count"` // defaults to copy_count
}

type seedPatron struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	JoinedAt  *int64 `json:"joined_at"` // epoch millis, defaults to now
}

type seedFile struct {
	Books   []seedBook   `json:"books"`
	Patrons []seedPatron `json:"patrons"`
}

func main() {
	dbPath := flag.String("db", "libman.db", "path to the SQLite database")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: seed_catalog [-db path] catalog.json")
		os.Exit(2)
	}

	if err := run(context.Background(), *dbPath, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dbPath, catalogPath string) error {
	raw, err := os.ReadFile(catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := library.OpenDatabase(ctx, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := library.NewRepository(db, library.SystemClock{}, log)

	now := time.Now().UnixMilli()
	okBooks, okPatrons := 0, 0

	// Each row is its own batch so one bad entry doesn't sink the rest.
	for _, sb := range seed.Books {
		available := sb.CopyCount
		if sb.AvailableCount != nil {
			available = *sb.AvailableCount
		}
		book := library.Book{
			ISBN13:         sb.ISBN13,
			Title:          sb.Title,
			Author:         sb.Author,
			Description:    sb.Description,
			CoverImageURL:  sb.CoverImageURL,
			CopyCount:      sb.CopyCount,
			AvailableCount: available,
		}
		if err := repo.UpsertBooks(ctx, book); err != nil {
			log.Warn("skipping book", zap.String("isbn13", sb.ISBN13), zap.Error(err))
			continue
		}
		okBooks++
	}

	for _, sp := range seed.Patrons {
		joined := now
		if sp.JoinedAt != nil {
			joined = *sp.JoinedAt
		}
		patron := library.Patron{StudentID: sp.StudentID, Name: sp.Name, JoinedAt: joined}
		if err := repo.UpsertPatrons(ctx, patron); err != nil {
			log.Warn("skipping patron", zap.String("student_id", sp.StudentID), zap.Error(err))
			continue
		}
		okPatrons++
	}

	fmt.Printf("Seeded %d/%d books and %d/%d patrons into %s\n",
		okBooks, len(seed.Books), okPatrons, len(seed.Patrons), dbPath)
	return nil
}
