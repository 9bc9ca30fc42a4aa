package types

import "time"

// Book is a catalog entry. Quantity is the number of copies currently
// available, not the total owned; it is mutated only by the borrow
// lifecycle on approval and return.
type Book struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Author    string    `json:"author" db:"author"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BookStatistics aggregates catalog counts.
type BookStatistics struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Borrowed  int `json:"borrowed"`
}
