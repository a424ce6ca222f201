package library

import "errors"

// Sentinel errors for stable error mapping across layers. Callers match with
// errors.Is; the repository wraps them with context via fmt.Errorf("%w").
var (
	// ErrInvalidISBN indicates a string that is not a checksum-valid ISBN-13.
	ErrInvalidISBN = errors.New("invalid ISBN-13")

	// ErrInvalidStudentID indicates a student id that is not exactly 8 digits.
	ErrInvalidStudentID = errors.New("invalid student id")

	// ErrBookNotCataloged indicates a borrow against an unknown ISBN.
	ErrBookNotCataloged = errors.New("book not cataloged")

	// ErrNoCopiesAvailable indicates a borrow when available_count is zero.
	ErrNoCopiesAvailable = errors.New("no available copies")

	// ErrPatronNotRegistered indicates a borrow by an unknown student id.
	ErrPatronNotRegistered = errors.New("patron not registered")

	// ErrLoanNotFound indicates a return against an unknown loan id.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrIntegrity indicates prior data corruption (a loan referencing a missing
	// book, or available_count drifting past copy_count). Never auto-corrected.
	ErrIntegrity = errors.New("inventory integrity fault")
)
