package library

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Repository is the single authoritative gateway for all reads and writes to the
// books/patrons/loans tables. Multi-row updates required by borrow/return run
// inside one store transaction, so they apply all-or-nothing; the store's own
// transaction serialization is the unit of mutual exclusion, no extra locking is
// layered on top.
type Repository struct {
	db      *Database
	books   bookDAO
	patrons patronDAO
	loans   loanDAO
	clock   Clock
	log     *zap.Logger

	mu      sync.Mutex
	subs    map[int64]chan []Book
	nextSub int64
}

// NewRepository wires the repository to an open database. The clock is injected
// so tests can pin timestamps; nil defaults to the system clock in UTC.
func NewRepository(db *Database, clock Clock, log *zap.Logger) *Repository {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{
		db:    db,
		clock: clock,
		log:   log,
		subs:  make(map[int64]chan []Book),
	}
}

// FetchBookByISBN is a point lookup. A format-invalid key simply misses; absence
// is signaled by a nil book, not an error.
func (r *Repository) FetchBookByISBN(ctx context.Context, isbn13 string) (*Book, error) {
	return r.books.getByISBN(ctx, r.db.DB(), isbn13)
}

// UpsertBooks atomically replace-or-inserts every given book. Any invalid entry
// fails the whole batch before a single row is written.
func (r *Repository) UpsertBooks(ctx context.Context, books ...Book) error {
	if len(books) == 0 {
		return nil
	}
	for _, b := range books {
		if err := validateISBN13(b.ISBN13); err != nil {
			return err
		}
		if b.CopyCount < 0 {
			return fmt.Errorf("book %s: copy count must not be negative, got %d", b.ISBN13, b.CopyCount)
		}
		if b.AvailableCount < 0 || b.AvailableCount > b.CopyCount {
			return fmt.Errorf("book %s: available count %d outside [0, %d]", b.ISBN13, b.AvailableCount, b.CopyCount)
		}
	}
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return r.books.upsertAll(ctx, tx, books)
	})
	if err != nil {
		return err
	}
	r.notifyBooks(ctx)
	return nil
}

// RecordLoans atomically replace-or-inserts loan rows. Intended for seeding and
// bulk import; borrow/return own the availability bookkeeping.
func (r *Repository) RecordLoans(ctx context.Context, loans ...Loan) error {
	if len(loans) == 0 {
		return nil
	}
	for _, l := range loans {
		if err := validateISBN13(l.ISBN13); err != nil {
			return err
		}
		if err := validateStudentID(l.StudentID); err != nil {
			return err
		}
	}
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return r.loans.upsertAll(ctx, tx, loans)
	})
}

// UpsertPatrons atomically replace-or-inserts every given patron.
func (r *Repository) UpsertPatrons(ctx context.Context, patrons ...Patron) error {
	if len(patrons) == 0 {
		return nil
	}
	for _, p := range patrons {
		if err := validateStudentID(p.StudentID); err != nil {
			return err
		}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("patron %s: name must not be blank", p.StudentID)
		}
	}
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return r.patrons.upsertAll(ctx, tx, patrons)
	})
}

// FetchPatron validates the student id format first and fails loudly on a
// malformed one; otherwise absence is a nil patron.
func (r *Repository) FetchPatron(ctx context.Context, studentID string) (*Patron, error) {
	if err := validateStudentID(studentID); err != nil {
		return nil, err
	}
	return r.patrons.getByStudentID(ctx, r.db.DB(), studentID)
}

// ListPatrons returns all registered patrons ordered by name.
func (r *Repository) ListPatrons(ctx context.Context) ([]Patron, error) {
	return r.patrons.list(ctx, r.db.DB())
}

// FetchLoan is a point lookup by loan id; absence is a nil loan.
func (r *Repository) FetchLoan(ctx context.Context, loanID int64) (*Loan, error) {
	return r.loans.getByID(ctx, r.db.DB(), loanID)
}

// LatestLoan returns the most recently inserted loan, or nil when none exist.
func (r *Repository) LatestLoan(ctx context.Context) (*Loan, error) {
	return r.loans.latest(ctx, r.db.DB())
}

// BorrowBook decrements the book's available count and records a BORROWED loan
// in one transaction. Any failure rolls back both writes: no decrement without a
// loan row, and no loan row without a decrement.
func (r *Repository) BorrowBook(ctx context.Context, isbn13, studentID string) error {
	if err := validateISBN13(isbn13); err != nil {
		return err
	}
	if err := validateStudentID(studentID); err != nil {
		return err
	}

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		book, err := r.books.getByISBN(ctx, tx, isbn13)
		if err != nil {
			return err
		}
		if book == nil {
			return fmt.Errorf("%w: no book with ISBN-13 %s", ErrBookNotCataloged, isbn13)
		}
		if book.AvailableCount <= 0 {
			return fmt.Errorf("%w: %s", ErrNoCopiesAvailable, isbn13)
		}
		patron, err := r.patrons.getByStudentID(ctx, tx, studentID)
		if err != nil {
			return err
		}
		if patron == nil {
			return fmt.Errorf("%w: student %s", ErrPatronNotRegistered, studentID)
		}

		if err := r.books.updateAvailableCount(ctx, tx, isbn13, book.AvailableCount-1); err != nil {
			return err
		}
		loanID, err := r.loans.insert(ctx, tx, Loan{
			ISBN13:     isbn13,
			StudentID:  patron.StudentID,
			Status:     StatusBorrowed,
			BorrowedAt: r.clock.Now(),
		})
		if err != nil {
			return err
		}
		r.log.Info("book borrowed",
			zap.String("isbn13", isbn13),
			zap.String("student_id", studentID),
			zap.Int64("loan_id", loanID))
		return nil
	})
	if err != nil {
		return err
	}
	r.notifyBooks(ctx)
	return nil
}

// ReturnBook increments the book's available count and marks the loan RETURNED
// in one transaction. Returning an already-returned loan succeeds with no state
// change. A missing referenced book or an increment past copy_count indicates
// prior corruption and surfaces as an integrity fault, never auto-corrected.
func (r *Repository) ReturnBook(ctx context.Context, loanID int64) error {
	changed := false
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		loan, err := r.loans.getByID(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return fmt.Errorf("%w: loan %d", ErrLoanNotFound, loanID)
		}
		if loan.Status == StatusReturned {
			return nil
		}
		book, err := r.books.getByISBN(ctx, tx, loan.ISBN13)
		if err != nil {
			return err
		}
		if book == nil {
			return fmt.Errorf("%w: book %s referenced by loan %d is missing", ErrIntegrity, loan.ISBN13, loanID)
		}
		newAvailable := book.AvailableCount + 1
		if newAvailable > book.CopyCount {
			return fmt.Errorf("%w: available count %d would exceed copy count %d for %s",
				ErrIntegrity, newAvailable, book.CopyCount, book.ISBN13)
		}

		if err := r.books.updateAvailableCount(ctx, tx, book.ISBN13, newAvailable); err != nil {
			return err
		}
		if err := r.loans.markReturned(ctx, tx, loanID, StatusReturned, r.clock.Now()); err != nil {
			return err
		}
		changed = true
		r.log.Info("book returned",
			zap.Int64("loan_id", loanID),
			zap.String("isbn13", loan.ISBN13))
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		r.notifyBooks(ctx)
	}
	return nil
}

func validateISBN13(isbn13 string) error {
	if !IsValidISBN13(isbn13) {
		return fmt.Errorf("%w: %q must be 13 digits with a valid checksum", ErrInvalidISBN, isbn13)
	}
	return nil
}

func validateStudentID(studentID string) error {
	if !IsValidStudentID(studentID) {
		return fmt.Errorf("%w: %q must be exactly 8 digits", ErrInvalidStudentID, studentID)
	}
	return nil
}
