package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/booklend/apiserver/internal/mq"
	"github.com/booklend/apiserver/internal/store"
	"github.com/booklend/apiserver/types"
)

// ErrInvalidInput is returned when a request payload fails validation.
var ErrInvalidInput = errors.New("invalid input")

// BorrowRepository defines persistence operations for requests and
// history. Approve and Return are atomic: status change, quantity
// adjustment, and history write land together or not at all.
type BorrowRepository interface {
	CreateRequest(ctx context.Context, request types.BorrowRequest) (types.BorrowRequest, error)
	GetRequest(ctx context.Context, id int) (types.BorrowRequest, error)
	ListRequests(ctx context.Context) ([]types.BorrowRequestDetail, error)
	Approve(ctx context.Context, requestID int) (types.BorrowHistory, error)
	Deny(ctx context.Context, requestID int) error
	Return(ctx context.Context, historyID int) (types.BorrowHistory, error)
	UserHistory(ctx context.Context, userID int) ([]types.HistoryEntry, error)
	DetailedHistory(ctx context.Context, userID int) ([]types.HistoryExportRow, error)
	Statistics(ctx context.Context, userID int) (types.BorrowStatistics, error)
}

// EventPublisher publishes loan lifecycle events.
type EventPublisher interface {
	PublishLoanEvent(ctx context.Context, event mq.LoanEvent) (string, error)
}

// DecisionRecorder counts lifecycle transitions.
type DecisionRecorder interface {
	RecordLoanDecision(decision string)
}

// BorrowService owns the borrow-request state machine:
// pending -> approved -> returned, pending -> denied. Decided states
// are terminal.
type BorrowService struct {
	repo    BorrowRepository
	books   BookRepository
	events  EventPublisher
	metrics DecisionRecorder
}

func NewBorrowService(repo BorrowRepository, books BookRepository) *BorrowService {
	return &BorrowService{repo: repo, books: books}
}

// WithEvents attaches an optional loan event publisher.
func (s *BorrowService) WithEvents(events EventPublisher) *BorrowService {
	s.events = events
	return s
}

// WithMetrics attaches an optional decision recorder.
func (s *BorrowService) WithMetrics(metrics DecisionRecorder) *BorrowService {
	s.metrics = metrics
	return s
}

// Create submits a pending request. The book must exist and have at
// least one available copy, though inventory is only taken at
// approval time; the date range must be ordered.
func (s *BorrowService) Create(ctx context.Context, userID, bookID int, startDate, endDate time.Time) (types.BorrowRequest, error) {
	if startDate.IsZero() || endDate.IsZero() || endDate.Before(startDate) {
		return types.BorrowRequest{}, ErrInvalidInput
	}

	book, err := s.books.Get(ctx, bookID)
	if err != nil {
		return types.BorrowRequest{}, err
	}
	if book.Quantity < 1 {
		return types.BorrowRequest{}, store.ErrUnavailable
	}

	return s.repo.CreateRequest(ctx, types.BorrowRequest{
		UserID:    userID,
		BookID:    bookID,
		StartDate: startDate,
		EndDate:   endDate,
	})
}

func (s *BorrowService) ListRequests(ctx context.Context) ([]types.BorrowRequestDetail, error) {
	return s.repo.ListRequests(ctx)
}

// Approve decides a pending request, decrements the book's available
// quantity, and opens a history row.
func (s *BorrowService) Approve(ctx context.Context, requestID int) (types.BorrowHistory, error) {
	history, err := s.repo.Approve(ctx, requestID)
	if err != nil {
		return types.BorrowHistory{}, err
	}

	s.recordDecision(string(mq.LoanApproved))
	s.publish(ctx, mq.LoanEvent{
		Type:       mq.LoanApproved,
		RequestID:  requestID,
		HistoryID:  history.ID,
		UserID:     history.UserID,
		BookID:     history.BookID,
		OccurredAt: history.BorrowedOn,
	})
	return history, nil
}

// Deny decides a pending request without touching inventory.
func (s *BorrowService) Deny(ctx context.Context, requestID int) error {
	if err := s.repo.Deny(ctx, requestID); err != nil {
		return err
	}

	s.recordDecision(string(mq.LoanDenied))
	if s.events != nil {
		request, err := s.repo.GetRequest(ctx, requestID)
		if err == nil {
			s.publish(ctx, mq.LoanEvent{
				Type:       mq.LoanDenied,
				RequestID:  requestID,
				UserID:     request.UserID,
				BookID:     request.BookID,
				OccurredAt: time.Now(),
			})
		}
	}
	return nil
}

// Return closes an open loan and restores the book's quantity. Keyed
// by the borrow-history id, where returned_on lives.
func (s *BorrowService) Return(ctx context.Context, historyID int) (types.BorrowHistory, error) {
	history, err := s.repo.Return(ctx, historyID)
	if err != nil {
		return types.BorrowHistory{}, err
	}

	s.recordDecision(string(mq.LoanReturned))
	s.publish(ctx, mq.LoanEvent{
		Type:       mq.LoanReturned,
		HistoryID:  history.ID,
		UserID:     history.UserID,
		BookID:     history.BookID,
		OccurredAt: *history.ReturnedOn,
	})
	return history, nil
}

func (s *BorrowService) UserHistory(ctx context.Context, userID int) ([]types.HistoryEntry, error) {
	return s.repo.UserHistory(ctx, userID)
}

// Statistics aggregates request and loan counts. userID of zero means
// all users (librarian scope).
func (s *BorrowService) Statistics(ctx context.Context, userID int) (types.BorrowStatistics, error) {
	return s.repo.Statistics(ctx, userID)
}

// publish sends a loan event when a publisher is configured. Delivery
// failures are logged, never surfaced: the state transition has
// already committed.
func (s *BorrowService) publish(ctx context.Context, event mq.LoanEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishLoanEvent(ctx, event); err != nil {
		slog.Error("failed to publish loan event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *BorrowService) recordDecision(decision string) {
	if s.metrics != nil {
		s.metrics.RecordLoanDecision(decision)
	}
}
