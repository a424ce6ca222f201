package usecase

import (
	"context"
	"errors"
	"fmt"

	"libman/library"
)

// ReturnOutcomeKind distinguishes the ways a return attempt can end.
type ReturnOutcomeKind int

const (
	ReturnSucceeded ReturnOutcomeKind = iota
	ReturnInvalidLoanID
	ReturnLoanNotFound
	// ReturnAlreadyReturned is a success with no state change, reported
	// distinctly so the UI can say so.
	ReturnAlreadyReturned
	ReturnBookMissing
	ReturnFailed
)

// ReturnOutcome reports a return attempt.
type ReturnOutcome struct {
	Kind            ReturnOutcomeKind
	LoanID          int64
	ISBN13          string
	Status          library.LoanStatus
	AvailableCopies int
	Message         string
	Cause           error
}

// Ok reports whether the loan ended up RETURNED, including the idempotent case.
func (o ReturnOutcome) Ok() bool {
	return o.Kind == ReturnSucceeded || o.Kind == ReturnAlreadyReturned
}

// ReturnBook validates the loan id and delegates the transactional return to
// the repository.
type ReturnBook struct {
	repo *library.Repository
}

func NewReturnBook(repo *library.Repository) *ReturnBook {
	return &ReturnBook{repo: repo}
}

func (u *ReturnBook) Execute(ctx context.Context, loanID int64) ReturnOutcome {
	if loanID <= 0 {
		return ReturnOutcome{Kind: ReturnInvalidLoanID, LoanID: loanID,
			Message: "Loan ids are positive integers."}
	}

	loan, err := u.repo.FetchLoan(ctx, loanID)
	if err != nil {
		return returnFailure(loanID, err)
	}
	if loan == nil {
		return ReturnOutcome{Kind: ReturnLoanNotFound, LoanID: loanID,
			Message: fmt.Sprintf("Loan %d was not found.", loanID)}
	}
	if loan.Status == library.StatusReturned {
		return ReturnOutcome{Kind: ReturnAlreadyReturned, LoanID: loanID, ISBN13: loan.ISBN13,
			Status: loan.Status, Message: "This loan was already returned."}
	}

	if err := u.repo.ReturnBook(ctx, loanID); err != nil {
		switch {
		case errors.Is(err, library.ErrLoanNotFound):
			return ReturnOutcome{Kind: ReturnLoanNotFound, LoanID: loanID, Message: err.Error()}
		case errors.Is(err, library.ErrIntegrity):
			return ReturnOutcome{Kind: ReturnBookMissing, LoanID: loanID, ISBN13: loan.ISBN13,
				Message: err.Error(), Cause: err}
		default:
			return returnFailure(loanID, err)
		}
	}

	outcome := ReturnOutcome{
		Kind:    ReturnSucceeded,
		LoanID:  loanID,
		ISBN13:  loan.ISBN13,
		Status:  library.StatusReturned,
		Message: fmt.Sprintf("Returned loan %d for %s.", loanID, loan.ISBN13),
	}
	if book, err := u.repo.FetchBookByISBN(ctx, loan.ISBN13); err == nil && book != nil {
		outcome.AvailableCopies = book.AvailableCount
	}
	return outcome
}

func returnFailure(loanID int64, err error) ReturnOutcome {
	return ReturnOutcome{
		Kind:    ReturnFailed,
		LoanID:  loanID,
		Message: "Unable to return this loan.",
		Cause:   err,
	}
}
