// Package usecase wraps the inventory repository in caller-facing flows whose
// outcomes map one-to-one onto UI feedback.
package usecase

import (
	"context"
	"errors"
	"fmt"

	"libman/library"
)

// BorrowOutcomeKind distinguishes the ways a borrow attempt can end.
type BorrowOutcomeKind int

const (
	BorrowSucceeded BorrowOutcomeKind = iota
	BorrowInvalidISBN
	BorrowInvalidStudentID
	BorrowBookNotCataloged
	BorrowNoCopiesAvailable
	BorrowPatronNotRegistered
	BorrowFailed
)

// BorrowOutcome reports a borrow attempt. Message is always safe to surface to
// the user; Cause carries the underlying error for BorrowFailed.
type BorrowOutcome struct {
	Kind            BorrowOutcomeKind
	ISBN13          string
	StudentID       string
	PatronName      string
	RemainingCopies int
	Message         string
	Cause           error
}

// Ok reports whether the borrow went through.
func (o BorrowOutcome) Ok() bool { return o.Kind == BorrowSucceeded }

// BorrowBook validates inputs, checks preconditions for tailored messaging, and
// delegates the transactional work to the repository.
type BorrowBook struct {
	repo *library.Repository
}

func NewBorrowBook(repo *library.Repository) *BorrowBook {
	return &BorrowBook{repo: repo}
}

func (u *BorrowBook) Execute(ctx context.Context, isbn13, studentID string) BorrowOutcome {
	if !library.IsValidISBN13(isbn13) {
		return BorrowOutcome{Kind: BorrowInvalidISBN, ISBN13: isbn13,
			Message: "The scanned code is not a valid ISBN-13."}
	}
	if !library.IsValidStudentID(studentID) {
		return BorrowOutcome{Kind: BorrowInvalidStudentID, StudentID: studentID,
			Message: "Student IDs are exactly 8 digits."}
	}

	book, err := u.repo.FetchBookByISBN(ctx, isbn13)
	if err != nil {
		return borrowFailure(isbn13, studentID, err)
	}
	if book == nil {
		return BorrowOutcome{Kind: BorrowBookNotCataloged, ISBN13: isbn13,
			Message: fmt.Sprintf("No book with ISBN %s is cataloged.", isbn13)}
	}
	if book.AvailableCount <= 0 {
		return BorrowOutcome{Kind: BorrowNoCopiesAvailable, ISBN13: isbn13,
			Message: "All copies of this book are currently on loan."}
	}

	patron, err := u.repo.FetchPatron(ctx, studentID)
	if err != nil {
		return borrowFailure(isbn13, studentID, err)
	}
	if patron == nil {
		return BorrowOutcome{Kind: BorrowPatronNotRegistered, StudentID: studentID,
			Message: fmt.Sprintf("Student %s is not registered as a patron.", studentID)}
	}

	if err := u.repo.BorrowBook(ctx, isbn13, studentID); err != nil {
		// The transaction re-checks everything; map races back to their kinds.
		switch {
		case errors.Is(err, library.ErrBookNotCataloged):
			return BorrowOutcome{Kind: BorrowBookNotCataloged, ISBN13: isbn13, Message: err.Error()}
		case errors.Is(err, library.ErrNoCopiesAvailable):
			return BorrowOutcome{Kind: BorrowNoCopiesAvailable, ISBN13: isbn13, Message: err.Error()}
		case errors.Is(err, library.ErrPatronNotRegistered):
			return BorrowOutcome{Kind: BorrowPatronNotRegistered, StudentID: studentID, Message: err.Error()}
		default:
			return borrowFailure(isbn13, studentID, err)
		}
	}

	remaining := book.AvailableCount - 1
	if updated, err := u.repo.FetchBookByISBN(ctx, isbn13); err == nil && updated != nil {
		remaining = updated.AvailableCount
	}

	return BorrowOutcome{
		Kind:            BorrowSucceeded,
		ISBN13:          isbn13,
		StudentID:       studentID,
		PatronName:      patron.Name,
		RemainingCopies: remaining,
		Message:         fmt.Sprintf("Borrowed %s for %s, %d copies remaining.", isbn13, patron.Name, remaining),
	}
}

func borrowFailure(isbn13, studentID string, err error) BorrowOutcome {
	return BorrowOutcome{
		Kind:      BorrowFailed,
		ISBN13:    isbn13,
		StudentID: studentID,
		Message:   "Unable to borrow the selected book.",
		Cause:     err,
	}
}
