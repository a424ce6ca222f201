package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	validISBN      = "9780306406157"
	otherISBN      = "9780132350884"
	validStudentID = "12345678"
)

var fixedInstant = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func tempRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := OpenDatabase(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "open db")
	t.Cleanup(func() { db.Close() })
	return NewRepository(db, FixedClock{Instant: fixedInstant}, zap.NewNop())
}

func seed(t *testing.T, repo *Repository) {
	t.Helper()
	ctx := context.Background()
	author := "Tester"
	require.NoError(t, repo.UpsertBooks(ctx, Book{
		ISBN13:         validISBN,
		Title:          "Test Book",
		Author:         &author,
		CopyCount:      2,
		AvailableCount: 2,
	}))
	require.NoError(t, repo.UpsertPatrons(ctx, Patron{
		StudentID: validStudentID,
		Name:      "Test Patron",
	}))
}

func TestBorrowDecrementsAvailableCountAndCreatesLoan(t *testing.T) {
	repo := tempRepo(t)
	seed(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.BorrowBook(ctx, validISBN, validStudentID))

	book, err := repo.FetchBookByISBN(ctx, validISBN)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, 1, book.AvailableCount)

	loan, err := repo.LatestLoan(ctx)
	require.NoError(t, err)
	require.NotNil(t, loan)
	assert.Equal(t, validISBN, loan.ISBN13)
	assert.Equal(t, validStudentID, loan.StudentID)
	assert.Equal(t, StatusBorrowed, loan.Status)
	assert.Equal(t, fixedInstant.UnixMilli(), loan.BorrowedAt.UnixMilli())
	assert.Nil(t, loan.DueAt)
	assert.Nil(t, loan.ReturnedAt)
}

func TestReturnIncrementsAvailableCount(t *testing.T) {
	repo := tempRepo(t)
	seed(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.BorrowBook(ctx, validISBN, validStudentID))
	loan, err := repo.LatestLoan(ctx)
	require.NoError(t, err)
	require.NotNil(t, loan)

	require.NoError(t, repo.ReturnBook(ctx, loan.LoanID))

	book, err := repo.FetchBookByISBN(ctx, validISBN)
	require.NoError(t, err)
	assert.Equal(t, 2, book.AvailableCount)

	returned, err := repo.FetchLoan(ctx, loan.LoanID)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, fixedInstant.UnixMilli(), returned.ReturnedAt.UnixMilli())
}

func TestReturnIsIdempotent(t *testing.T) {
	repo := tempRepo(t)
	seed(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.BorrowBook(ctx, validISBN, validStudentID))
	loan, _ := repo.LatestLoan(ctx)
	require.NoError(t, repo.ReturnBook(ctx, loan.LoanID))
	first, _ := repo.FetchLoan(ctx, loan.LoanID)

	require.NoError(t, repo.ReturnBook(ctx, loan.LoanID))

	book, err := repo.FetchBookByISBN(ctx, validISBN)
	require.NoError(t, err)
	assert.Equal(t, 2, book.AvailableCount, "second return must not change counts")

	second, _ := repo.FetchLoan(ctx, loan.LoanID)
	assert.Equal(t, first.ReturnedAt, second.ReturnedAt)
}

func TestBorrowFailsWithoutAvailableCopies(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.UpsertBooks(ctx, Book{ISBN13: validISBN, Title: "Gone", CopyCount: 2, AvailableCount: 0}))
	require.NoError(t, repo.UpsertPatrons(ctx, Patron{StudentID: validStudentID, Name: "P"}))

	err := repo.BorrowBook(ctx, validISBN, validStudentID)
	require.ErrorIs(t, err, ErrNoCopiesAvailable)

	loan, err := repo.LatestLoan(ctx)
	require.NoError(t, err)
	assert.Nil(t, loan, "failed borrow must not create a loan")
}

func TestBorrowFailsForUnregisteredPatron(t *testing.T) {
	repo := tempRepo(t)
	seed(t, repo)
	ctx := context.Background()

	err := repo.BorrowBook(ctx, validISBN, "99999999")
	require.ErrorIs(t, err, ErrPatronNotRegistered)

	book, _ := repo.FetchBookByISBN(ctx, validISBN)
	assert.Equal(t, 2, book.AvailableCount, "failed borrow must not decrement")
}

func TestBorrowFailsForUnknownBook(t *testing.T) {
	repo := tempRepo(t)
	seed(t, repo)

	err := repo.BorrowBook(context.Background(), otherISBN, validStudentID)
	require.ErrorIs(t, err, ErrBookNotCataloged)
}

func TestBorrowRejectsMalformedInputBeforeStoreAccess(t *testing.T) {
	repo := tempRepo(t)

	err := repo.BorrowBook(context.Background(), "9780306406158", validStudentID)
	require.ErrorIs(t, err, ErrInvalidISBN)

	err = repo.BorrowBook(context.Background(), validISBN, "123")
	require.ErrorIs(t, err, ErrInvalidStudentID)
}

func TestReturnFailsForUnknownLoan(t *testing.T) {
	repo := tempRepo(t)

	err := repo.ReturnBook(context.Background(), 42)
	require.ErrorIs(t, err, ErrLoanNotFound)
}

func TestReturnDetectsCountDrift(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()
	// A BORROWED loan while available_count already equals copy_count means the
	// counts drifted; the return must fail loudly instead of papering over it.
	require.NoError(t, repo.UpsertBooks(ctx, Book{ISBN13: validISBN, Title: "Drift", CopyCount: 1, AvailableCount: 1}))
	require.NoError(t, repo.UpsertPatrons(ctx, Patron{StudentID: validStudentID, Name: "P"}))
	require.NoError(t, repo.RecordLoans(ctx, Loan{
		ISBN13:     validISBN,
		StudentID:  validStudentID,
		Status:     StatusBorrowed,
		BorrowedAt: fixedInstant,
	}))
	loan, _ := repo.LatestLoan(ctx)

	err := repo.ReturnBook(ctx, loan.LoanID)
	require.ErrorIs(t, err, ErrIntegrity)

	book, _ := repo.FetchBookByISBN(ctx, validISBN)
	assert.Equal(t, 1, book.AvailableCount, "integrity fault must not persist writes")
}

func TestUpsertBooksEmptyIsNoOp(t *testing.T) {
	repo := tempRepo(t)
	require.NoError(t, repo.UpsertBooks(context.Background()))
	require.NoError(t, repo.UpsertPatrons(context.Background()))
	require.NoError(t, repo.RecordLoans(context.Background()))
}

func TestUpsertBooksRejectsWholeBatchOnOneInvalidEntry(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()

	err := repo.UpsertBooks(ctx,
		Book{ISBN13: validISBN, Title: "Good", CopyCount: 1, AvailableCount: 1},
		Book{ISBN13: "9780306406158", Title: "Bad checksum", CopyCount: 1, AvailableCount: 1},
	)
	require.ErrorIs(t, err, ErrInvalidISBN)

	book, err := repo.FetchBookByISBN(ctx, validISBN)
	require.NoError(t, err)
	assert.Nil(t, book, "no row from a rejected batch may be written")
}

func TestUpsertBooksEnforcesCountInvariant(t *testing.T) {
	repo := tempRepo(t)
	ctx := context.Background()

	err := repo.UpsertBooks(ctx, Book{ISBN13: validISBN, Title: "T", CopyCount: 1, AvailableCount: 2})
	require.Error(t, err)

	err = repo.UpsertBooks(ctx, Book{ISBN13: validISBN, Title: "T", CopyCount: -1, AvailableCount: 0})
	require.Error(t, err)
}

func TestUpsertPatronsRejectsBlankName(t *testing.T) {
	repo := tempRepo(t)
	err := repo.UpsertPatrons(context.Background(), Patron{StudentID: validStudentID, Name: "   "})
	require.Error(t, err)
}

func TestFetchPatronRejectsMalformedID(t *testing.T) {
	repo := tempRepo(t)
	_, err := repo.FetchPatron(context.Background(), "12ab5678")
	require.ErrorIs(t, err, ErrInvalidStudentID)
}

func TestFetchBookMissesSilentlyOnUnknownKey(t *testing.T) {
	repo := tempRepo(t)
	book, err := repo.FetchBookByISBN(context.Background(), "not-an-isbn")
	require.NoError(t, err)
	assert.Nil(t, book)
}

func TestRecordLoansRoundTrip(t *testing.T) {
	repo := tempRepo(t)
	seed(t, repo)
	ctx := context.Background()
	due := fixedInstant.Add(14 * 24 * time.Hour)

	require.NoError(t, repo.RecordLoans(ctx, Loan{
		ISBN13:     validISBN,
		StudentID:  validStudentID,
		Status:     StatusBorrowed,
		BorrowedAt: fixedInstant,
		DueAt:      &due,
	}))

	loan, err := repo.LatestLoan(ctx)
	require.NoError(t, err)
	require.NotNil(t, loan)
	assert.NotZero(t, loan.LoanID, "store assigns the loan id")
	require.NotNil(t, loan.DueAt)
	assert.Equal(t, due.UnixMilli(), loan.DueAt.UnixMilli())

	err = repo.RecordLoans(ctx, Loan{ISBN13: validISBN, StudentID: "1", Status: StatusBorrowed})
	require.ErrorIs(t, err, ErrInvalidStudentID)
}

// A failure after the availability decrement must leave no partial state: the
// loan insert below violates the patron foreign key inside the same
// transaction, and the decrement is rolled back with it.
func TestMidTransactionFailureRollsBackDecrement(t *testing.T) {
	repo := tempRepo(t)
	seed(t, repo)
	ctx := context.Background()

	err := repo.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := repo.books.updateAvailableCount(ctx, tx, validISBN, 1); err != nil {
			return err
		}
		_, err := repo.loans.insert(ctx, tx, Loan{
			ISBN13:     validISBN,
			StudentID:  "99999999", // valid format, not registered
			Status:     StatusBorrowed,
			BorrowedAt: fixedInstant,
		})
		return err
	})
	require.Error(t, err, "foreign key violation must surface")

	book, err := repo.FetchBookByISBN(ctx, validISBN)
	require.NoError(t, err)
	assert.Equal(t, 2, book.AvailableCount, "decrement must be rolled back")

	loan, err := repo.LatestLoan(ctx)
	require.NoError(t, err)
	assert.Nil(t, loan)
}

func TestBorrowReturnFullCycle(t *testing.T) {
	repo := tempRepo(t)
	seed(t, repo)
	ctx := context.Background()

	require.NoError(t, repo.BorrowBook(ctx, validISBN, validStudentID))
	book, _ := repo.FetchBookByISBN(ctx, validISBN)
	require.Equal(t, 1, book.AvailableCount)

	loan, _ := repo.LatestLoan(ctx)
	require.NoError(t, repo.ReturnBook(ctx, loan.LoanID))

	book, _ = repo.FetchBookByISBN(ctx, validISBN)
	assert.Equal(t, 2, book.AvailableCount)
	returned, _ := repo.FetchLoan(ctx, loan.LoanID)
	assert.Equal(t, StatusReturned, returned.Status)
}
