package types

import "time"

// RequestStatus is the closed set of borrow request states. Transitions
// are one-way: pending may become approved or denied, nothing leaves a
// decided state.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
)

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusDenied
}

// BorrowRequest is a user's request to borrow one copy of a book for
// the given date range. Inventory is untouched until approval.
type BorrowRequest struct {
	ID        int           `json:"id" db:"id"`
	UserID    int           `json:"user_id" db:"user_id"`
	BookID    int           `json:"book_id" db:"book_id"`
	StartDate time.Time     `json:"start_date" db:"start_date"`
	EndDate   time.Time     `json:"end_date" db:"end_date"`
	Status    RequestStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// BorrowRequestDetail is a request joined with the requesting user and
// the requested book, as shown to librarians.
type BorrowRequestDetail struct {
	BorrowRequest
	UserEmail string `json:"user_email" db:"user_email"`
	BookTitle string `json:"book_title" db:"book_title"`
}

// BorrowHistory records one loan. A row is created when a request is
// approved and ReturnedOn is set exactly once, on return.
type BorrowHistory struct {
	ID         int        `json:"id" db:"id"`
	UserID     int        `json:"user_id" db:"user_id"`
	BookID     int        `json:"book_id" db:"book_id"`
	BorrowedOn time.Time  `json:"borrowed_on" db:"borrowed_on"`
	ReturnedOn *time.Time `json:"returned_on" db:"returned_on"`
}

// HistoryEntry is a history row joined with the book title, as shown
// in a user's borrow history.
type HistoryEntry struct {
	BorrowHistory
	BookTitle string `json:"book_title" db:"book_title"`
}

// HistoryExportRow is one line of the reporting export: history joined
// with book and user, most recent first.
type HistoryExportRow struct {
	BookTitle  string     `json:"book_title"`
	BookAuthor string     `json:"book_author"`
	UserEmail  string     `json:"user_email"`
	BorrowedOn time.Time  `json:"borrowed_on"`
	ReturnedOn *time.Time `json:"returned_on"`
}

// BorrowStatistics aggregates request and loan counts, optionally
// scoped to one user.
type BorrowStatistics struct {
	TotalRequests int `json:"total_requests"`
	ActiveLoans   int `json:"active_loans"`
	ReturnedBooks int `json:"returned_books"`
}
