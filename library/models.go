package library

import "time"

// LoanStatus tracks where a loan is in its borrow/return cycle.
type LoanStatus string

const (
	StatusBorrowed LoanStatus = "BORROWED"
	StatusReturned LoanStatus = "RETURNED"
	// StatusOverdue is modeled in the schema but no due-date policy sets it yet.
	StatusOverdue LoanStatus = "OVERDUE"
)

// Book represents a cataloged title and its physical copy counts.
// AvailableCount must stay within [0, CopyCount] on every write path.
type Book struct {
	ISBN13            string  `json:"isbn13"`
	Title             string  `json:"title"`
	Author            *string `json:"author,omitempty"`
	Description       *string `json:"description,omitempty"`
	CoverImageURL     *string `json:"cover_image_url,omitempty"`
	CopyCount         int     `json:"copy_count"`
	AvailableCount    int     `json:"available_count"`
	MetadataFetchedAt *int64  `json:"metadata_fetched_at,omitempty"` // epoch millis of last enrichment
}

// Patron represents a student or administrator allowed to borrow books.
type Patron struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	JoinedAt  int64  `json:"joined_at"` // epoch millis
}

// Loan is one borrow/return cycle of one book copy by one patron.
// LoanID is assigned by the store on insert.
type Loan struct {
	LoanID     int64      `json:"loan_id"`
	ISBN13     string     `json:"isbn13"`
	StudentID  string     `json:"student_id"`
	Status     LoanStatus `json:"status"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}
