package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

type patronRow struct {
	StudentID string `db:"student_id"`
	Name      string `db:"name"`
	JoinedAt  int64  `db:"joined_at"`
}

func (r patronRow) toModel() Patron {
	return Patron{StudentID: r.StudentID, Name: r.Name, JoinedAt: r.JoinedAt}
}

type patronDAO struct{}

func (patronDAO) getByStudentID(ctx context.Context, q sqlx.ExtContext, studentID string) (*Patron, error) {
	query, args, err := dialect.From("patrons").Prepared(true).
		Select("student_id", "name", "joined_at").
		Where(goqu.Ex{"student_id": studentID}).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build patron lookup: %w", err)
	}

	var row patronRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get patron %s: %w", studentID, err)
	}
	patron := row.toModel()
	return &patron, nil
}

func (patronDAO) list(ctx context.Context, q sqlx.ExtContext) ([]Patron, error) {
	query, args, err := dialect.From("patrons").Prepared(true).
		Select("student_id", "name", "joined_at").
		Order(goqu.L("name COLLATE NOCASE").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build patron scan: %w", err)
	}

	var rows []patronRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list patrons: %w", err)
	}
	patrons := make([]Patron, len(rows))
	for i, r := range rows {
		patrons[i] = r.toModel()
	}
	return patrons, nil
}

const upsertPatronSQL = `
INSERT INTO patrons (student_id, name, joined_at)
VALUES (?, ?, ?)
ON CONFLICT(student_id) DO UPDATE SET
    name = excluded.name,
    joined_at = excluded.joined_at`

func (patronDAO) upsert(ctx context.Context, q sqlx.ExtContext, p Patron) error {
	if _, err := q.ExecContext(ctx, upsertPatronSQL, p.StudentID, p.Name, p.JoinedAt); err != nil {
		return fmt.Errorf("upsert patron %s: %w", p.StudentID, err)
	}
	return nil
}

func (d patronDAO) upsertAll(ctx context.Context, q sqlx.ExtContext, patrons []Patron) error {
	for _, p := range patrons {
		if err := d.upsert(ctx, q, p); err != nil {
			return err
		}
	}
	return nil
}
