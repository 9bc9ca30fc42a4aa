package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/booklend/apiserver/types"
)

// BookRepository handles persistence for catalog entries.
type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

const bookColumns = `id, title, author, quantity, created_at`

func (r *BookRepository) Get(ctx context.Context, id int) (types.Book, error) {
	const query = `
		SELECT id, title, author, quantity, created_at
		FROM books
		WHERE id = $1`
	var book types.Book
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Quantity,
		&book.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Book{}, ErrNotFound
		}
		return types.Book{}, err
	}
	return book, nil
}

func (r *BookRepository) List(ctx context.Context) ([]types.Book, error) {
	const query = `
		SELECT ` + bookColumns + `
		FROM books
		ORDER BY id`
	return r.queryBooks(ctx, query)
}

// Search matches the term against title or author, case-insensitively.
func (r *BookRepository) Search(ctx context.Context, term string) ([]types.Book, error) {
	const query = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE title ILIKE '%' || $1 || '%' OR author ILIKE '%' || $1 || '%'
		ORDER BY id`
	return r.queryBooks(ctx, query, term)
}

// ListByAvailability returns books with at least one available copy
// when available is true, and exhausted books otherwise.
func (r *BookRepository) ListByAvailability(ctx context.Context, available bool) ([]types.Book, error) {
	query := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE quantity = 0
		ORDER BY id`
	if available {
		query = `
		SELECT ` + bookColumns + `
		FROM books
		WHERE quantity > 0
		ORDER BY id`
	}
	return r.queryBooks(ctx, query)
}

func (r *BookRepository) Create(ctx context.Context, book types.Book) (types.Book, error) {
	book.CreatedAt = time.Now()

	const query = `
		INSERT INTO books (title, author, quantity, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		book.Title,
		book.Author,
		book.Quantity,
		book.CreatedAt,
	).Scan(&book.ID); err != nil {
		return types.Book{}, err
	}
	return book, nil
}

func (r *BookRepository) Statistics(ctx context.Context) (types.BookStatistics, error) {
	const query = `
		SELECT
			(SELECT COUNT(1) FROM books),
			(SELECT COUNT(1) FROM books WHERE quantity > 0),
			(SELECT COUNT(1) FROM borrow_history WHERE returned_on IS NULL)`
	var stats types.BookStatistics
	if err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Total,
		&stats.Available,
		&stats.Borrowed,
	); err != nil {
		return types.BookStatistics{}, err
	}
	return stats, nil
}

func (r *BookRepository) queryBooks(ctx context.Context, query string, args ...any) ([]types.Book, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]types.Book, 0)
	for rows.Next() {
		var book types.Book
		if err := rows.Scan(
			&book.ID,
			&book.Title,
			&book.Author,
			&book.Quantity,
			&book.CreatedAt,
		); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}
