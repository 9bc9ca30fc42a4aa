package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/booklend/apiserver/types"
)

// BorrowRepository handles persistence for borrow requests and history.
// The approve and return transitions run inside transactions with
// conditional updates so a status change, the quantity adjustment, and
// the history write are observed as one atomic unit.
type BorrowRepository struct {
	db *sql.DB
}

func NewBorrowRepository(db *sql.DB) *BorrowRepository {
	return &BorrowRepository{db: db}
}

func (r *BorrowRepository) CreateRequest(ctx context.Context, request types.BorrowRequest) (types.BorrowRequest, error) {
	request.Status = types.StatusPending
	request.CreatedAt = time.Now()

	const query = `
		INSERT INTO borrow_requests (user_id, book_id, start_date, end_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		request.UserID,
		request.BookID,
		request.StartDate,
		request.EndDate,
		request.Status,
		request.CreatedAt,
	).Scan(&request.ID); err != nil {
		return types.BorrowRequest{}, err
	}
	return request, nil
}

func (r *BorrowRepository) GetRequest(ctx context.Context, id int) (types.BorrowRequest, error) {
	const query = `
		SELECT id, user_id, book_id, start_date, end_date, status, created_at
		FROM borrow_requests
		WHERE id = $1`
	var request types.BorrowRequest
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&request.ID,
		&request.UserID,
		&request.BookID,
		&request.StartDate,
		&request.EndDate,
		&request.Status,
		&request.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.BorrowRequest{}, ErrNotFound
		}
		return types.BorrowRequest{}, err
	}
	return request, nil
}

// ListRequests returns all requests joined with user and book, newest
// first, for the librarian overview.
func (r *BorrowRepository) ListRequests(ctx context.Context) ([]types.BorrowRequestDetail, error) {
	const query = `
		SELECT br.id, br.user_id, br.book_id, br.start_date, br.end_date, br.status, br.created_at,
		       u.email, b.title
		FROM borrow_requests br
		JOIN users u ON br.user_id = u.id
		JOIN books b ON br.book_id = b.id
		ORDER BY br.created_at DESC, br.id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]types.BorrowRequestDetail, 0)
	for rows.Next() {
		var detail types.BorrowRequestDetail
		if err := rows.Scan(
			&detail.ID,
			&detail.UserID,
			&detail.BookID,
			&detail.StartDate,
			&detail.EndDate,
			&detail.Status,
			&detail.CreatedAt,
			&detail.UserEmail,
			&detail.BookTitle,
		); err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// Approve moves a pending request to approved, takes one copy out of
// inventory, and opens a history row, all in one transaction. The
// conditional quantity update closes the race between two approvals of
// the last copy: the loser sees zero affected rows and rolls back.
func (r *BorrowRepository) Approve(ctx context.Context, requestID int) (types.BorrowHistory, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.BorrowHistory{}, err
	}
	defer tx.Rollback()

	const decideQuery = `
		UPDATE borrow_requests
		SET status = $1
		WHERE id = $2 AND status = $3
		RETURNING user_id, book_id`
	var userID, bookID int
	err = tx.QueryRowContext(ctx, decideQuery, types.StatusApproved, requestID, types.StatusPending).
		Scan(&userID, &bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.BorrowHistory{}, r.classifyDecisionFailure(ctx, requestID)
		}
		return types.BorrowHistory{}, err
	}

	const takeCopyQuery = `
		UPDATE books
		SET quantity = quantity - 1
		WHERE id = $1 AND quantity >= 1`
	result, err := tx.ExecContext(ctx, takeCopyQuery, bookID)
	if err != nil {
		return types.BorrowHistory{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.BorrowHistory{}, err
	}
	if affected == 0 {
		return types.BorrowHistory{}, ErrUnavailable
	}

	history := types.BorrowHistory{
		UserID:     userID,
		BookID:     bookID,
		BorrowedOn: time.Now(),
	}
	const historyQuery = `
		INSERT INTO borrow_history (user_id, book_id, borrowed_on)
		VALUES ($1, $2, $3)
		RETURNING id`
	if err := tx.QueryRowContext(ctx, historyQuery, history.UserID, history.BookID, history.BorrowedOn).
		Scan(&history.ID); err != nil {
		return types.BorrowHistory{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.BorrowHistory{}, err
	}
	return history, nil
}

// Deny moves a pending request to denied. No inventory effect.
func (r *BorrowRepository) Deny(ctx context.Context, requestID int) error {
	const query = `
		UPDATE borrow_requests
		SET status = $1
		WHERE id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, types.StatusDenied, requestID, types.StatusPending)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.classifyDecisionFailure(ctx, requestID)
	}
	return nil
}

// Return closes an open history row and puts the copy back, in one
// transaction. Keyed by the history id, where returned_on lives.
func (r *BorrowRepository) Return(ctx context.Context, historyID int) (types.BorrowHistory, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.BorrowHistory{}, err
	}
	defer tx.Rollback()

	const closeQuery = `
		UPDATE borrow_history
		SET returned_on = $1
		WHERE id = $2 AND returned_on IS NULL
		RETURNING user_id, book_id, borrowed_on`
	now := time.Now()
	history := types.BorrowHistory{ID: historyID, ReturnedOn: &now}
	err = tx.QueryRowContext(ctx, closeQuery, now, historyID).
		Scan(&history.UserID, &history.BookID, &history.BorrowedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.BorrowHistory{}, r.classifyReturnFailure(ctx, historyID)
		}
		return types.BorrowHistory{}, err
	}

	const restockQuery = `
		UPDATE books
		SET quantity = quantity + 1
		WHERE id = $1`
	if _, err := tx.ExecContext(ctx, restockQuery, history.BookID); err != nil {
		return types.BorrowHistory{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.BorrowHistory{}, err
	}
	return history, nil
}

// UserHistory returns one user's loans joined with the book title,
// most recent first.
func (r *BorrowRepository) UserHistory(ctx context.Context, userID int) ([]types.HistoryEntry, error) {
	const query = `
		SELECT bh.id, bh.user_id, bh.book_id, bh.borrowed_on, bh.returned_on, b.title
		FROM borrow_history bh
		JOIN books b ON bh.book_id = b.id
		WHERE bh.user_id = $1
		ORDER BY bh.borrowed_on DESC, bh.id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.HistoryEntry, 0)
	for rows.Next() {
		var entry types.HistoryEntry
		var returnedOn sql.NullTime
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.BookID,
			&entry.BorrowedOn,
			&returnedOn,
			&entry.BookTitle,
		); err != nil {
			return nil, err
		}
		if returnedOn.Valid {
			t := returnedOn.Time
			entry.ReturnedOn = &t
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// DetailedHistory returns history joined with book and user for the
// reporting export, most recent first. userID of zero means all users.
func (r *BorrowRepository) DetailedHistory(ctx context.Context, userID int) ([]types.HistoryExportRow, error) {
	const query = `
		SELECT b.title, b.author, u.email, bh.borrowed_on, bh.returned_on
		FROM borrow_history bh
		JOIN books b ON bh.book_id = b.id
		JOIN users u ON bh.user_id = u.id
		WHERE $1 = 0 OR bh.user_id = $1
		ORDER BY bh.borrowed_on DESC, bh.id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exportRows := make([]types.HistoryExportRow, 0)
	for rows.Next() {
		var row types.HistoryExportRow
		var returnedOn sql.NullTime
		if err := rows.Scan(
			&row.BookTitle,
			&row.BookAuthor,
			&row.UserEmail,
			&row.BorrowedOn,
			&returnedOn,
		); err != nil {
			return nil, err
		}
		if returnedOn.Valid {
			t := returnedOn.Time
			row.ReturnedOn = &t
		}
		exportRows = append(exportRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return exportRows, nil
}

// Statistics aggregates request and loan counts. userID of zero means
// all users.
func (r *BorrowRepository) Statistics(ctx context.Context, userID int) (types.BorrowStatistics, error) {
	const query = `
		SELECT
			(SELECT COUNT(1) FROM borrow_requests WHERE $1 = 0 OR user_id = $1),
			(SELECT COUNT(1) FROM borrow_history WHERE returned_on IS NULL AND ($1 = 0 OR user_id = $1)),
			(SELECT COUNT(1) FROM borrow_history WHERE returned_on IS NOT NULL AND ($1 = 0 OR user_id = $1))`
	var stats types.BorrowStatistics
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.TotalRequests,
		&stats.ActiveLoans,
		&stats.ReturnedBooks,
	); err != nil {
		return types.BorrowStatistics{}, err
	}
	return stats, nil
}

// classifyDecisionFailure distinguishes a missing request from one that
// is already decided after a conditional update touched zero rows.
func (r *BorrowRepository) classifyDecisionFailure(ctx context.Context, requestID int) error {
	request, err := r.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status != types.StatusPending {
		return ErrConflict
	}
	return ErrNotFound
}

func (r *BorrowRepository) classifyReturnFailure(ctx context.Context, historyID int) error {
	const query = `SELECT returned_on FROM borrow_history WHERE id = $1`
	var returnedOn sql.NullTime
	err := r.db.QueryRowContext(ctx, query, historyID).Scan(&returnedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if returnedOn.Valid {
		return ErrConflict
	}
	return ErrNotFound
}
