package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

var loanColumns = []any{
	"loan_id", "isbn13", "student_id", "status", "borrowed_at", "due_at", "returned_at",
}

// Loan timestamps are persisted as epoch millis, matching books.metadata_fetched_at
// and patrons.joined_at.
type loanRow struct {
	LoanID     int64  `db:"loan_id"`
	ISBN13     string `db:"isbn13"`
	StudentID  string `db:"student_id"`
	Status     string `db:"status"`
	BorrowedAt int64  `db:"borrowed_at"`
	DueAt      *int64 `db:"due_at"`
	ReturnedAt *int64 `db:"returned_at"`
}

func (r loanRow) toModel() Loan {
	return Loan{
		LoanID:     r.LoanID,
		ISBN13:     r.ISBN13,
		StudentID:  r.StudentID,
		Status:     LoanStatus(r.Status),
		BorrowedAt: fromMillis(r.BorrowedAt),
		DueAt:      fromMillisPtr(r.DueAt),
		ReturnedAt: fromMillisPtr(r.ReturnedAt),
	}
}

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func fromMillisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := fromMillis(*ms)
	return &t
}

func toMillisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

type loanDAO struct{}

func (loanDAO) getByID(ctx context.Context, q sqlx.ExtContext, loanID int64) (*Loan, error) {
	query, args, err := dialect.From("loans").Prepared(true).
		Select(loanColumns...).
		Where(goqu.Ex{"loan_id": loanID}).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build loan lookup: %w", err)
	}

	var row loanRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get loan %d: %w", loanID, err)
	}
	loan := row.toModel()
	return &loan, nil
}

// latest returns the most recently inserted loan (highest loan_id), or nil when
// the table is empty.
func (loanDAO) latest(ctx context.Context, q sqlx.ExtContext) (*Loan, error) {
	query, args, err := dialect.From("loans").Prepared(true).
		Select(loanColumns...).
		Order(goqu.I("loan_id").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build latest loan lookup: %w", err)
	}

	var row loanRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest loan: %w", err)
	}
	loan := row.toModel()
	return &loan, nil
}

// insert persists a fresh loan and returns the store-assigned id.
func (loanDAO) insert(ctx context.Context, q sqlx.ExtContext, l Loan) (int64, error) {
	query, args, err := dialect.Insert("loans").Prepared(true).
		Rows(goqu.Record{
			"isbn13":      l.ISBN13,
			"student_id":  l.StudentID,
			"status":      string(l.Status),
			"borrowed_at": l.BorrowedAt.UnixMilli(),
			"due_at":      toMillisPtr(l.DueAt),
			"returned_at": toMillisPtr(l.ReturnedAt),
		}).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build loan insert: %w", err)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert loan for %s: %w", l.ISBN13, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("loan id: %w", err)
	}
	return id, nil
}

const upsertLoanSQL = `
INSERT INTO loans (loan_id, isbn13, student_id, status, borrowed_at, due_at, returned_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(loan_id) DO UPDATE SET
    isbn13 = excluded.isbn13,
    student_id = excluded.student_id,
    status = excluded.status,
    borrowed_at = excluded.borrowed_at,
    due_at = excluded.due_at,
    returned_at = excluded.returned_at`

// upsert replaces a loan by primary key. A zero LoanID means the store assigns one.
func (d loanDAO) upsert(ctx context.Context, q sqlx.ExtContext, l Loan) (int64, error) {
	if l.LoanID == 0 {
		return d.insert(ctx, q, l)
	}
	if _, err := q.ExecContext(ctx, upsertLoanSQL,
		l.LoanID, l.ISBN13, l.StudentID, string(l.Status),
		l.BorrowedAt.UnixMilli(), toMillisPtr(l.DueAt), toMillisPtr(l.ReturnedAt)); err != nil {
		return 0, fmt.Errorf("upsert loan %d: %w", l.LoanID, err)
	}
	return l.LoanID, nil
}

func (d loanDAO) upsertAll(ctx context.Context, q sqlx.ExtContext, loans []Loan) error {
	for _, l := range loans {
		if _, err := d.upsert(ctx, q, l); err != nil {
			return err
		}
	}
	return nil
}

func (loanDAO) markReturned(ctx context.Context, q sqlx.ExtContext, loanID int64, status LoanStatus, returnedAt time.Time) error {
	query, args, err := dialect.Update("loans").Prepared(true).
		Set(goqu.Record{
			"status":      string(status),
			"returned_at": returnedAt.UnixMilli(),
		}).
		Where(goqu.Ex{"loan_id": loanID}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build loan return update: %w", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark loan %d returned: %w", loanID, err)
	}
	return nil
}
