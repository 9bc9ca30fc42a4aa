package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/booklend/apiserver/internal/services"
	"github.com/booklend/apiserver/internal/store"
	"github.com/booklend/apiserver/types"
)

var (
	_ services.UserRepository   = (*fakeUserRepo)(nil)
	_ services.BookRepository   = (*fakeBookRepo)(nil)
	_ services.BorrowRepository = (*fakeBorrowRepo)(nil)
)

// In-memory repositories implementing the service interfaces, with the
// same transition semantics the SQL layer enforces.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[int]types.User)}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	f.nextID++
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) delete(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

type fakeBookRepo struct {
	mu     sync.Mutex
	nextID int
	books  map[int]types.Book
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{nextID: 1, books: make(map[int]types.Book)}
}

func (f *fakeBookRepo) Get(ctx context.Context, id int) (types.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	book, ok := f.books[id]
	if !ok {
		return types.Book{}, store.ErrNotFound
	}
	return book, nil
}

func (f *fakeBookRepo) List(ctx context.Context) ([]types.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	books := make([]types.Book, 0, len(f.books))
	for id := 1; id < f.nextID; id++ {
		if book, ok := f.books[id]; ok {
			books = append(books, book)
		}
	}
	return books, nil
}

func (f *fakeBookRepo) Search(ctx context.Context, term string) ([]types.Book, error) {
	books, _ := f.List(ctx)
	matched := make([]types.Book, 0)
	for _, book := range books {
		if containsFold(book.Title, term) || containsFold(book.Author, term) {
			matched = append(matched, book)
		}
	}
	return matched, nil
}

func (f *fakeBookRepo) ListByAvailability(ctx context.Context, available bool) ([]types.Book, error) {
	books, _ := f.List(ctx)
	matched := make([]types.Book, 0)
	for _, book := range books {
		if (book.Quantity > 0) == available {
			matched = append(matched, book)
		}
	}
	return matched, nil
}

func (f *fakeBookRepo) Create(ctx context.Context, book types.Book) (types.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	book.ID = f.nextID
	book.CreatedAt = time.Now()
	f.nextID++
	f.books[book.ID] = book
	return book, nil
}

func (f *fakeBookRepo) Statistics(ctx context.Context) (types.BookStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := types.BookStatistics{Total: len(f.books)}
	for _, book := range f.books {
		if book.Quantity > 0 {
			stats.Available++
		}
	}
	return stats, nil
}

func (f *fakeBookRepo) adjustQuantity(id, delta int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	book := f.books[id]
	if book.Quantity+delta < 0 {
		return false
	}
	book.Quantity += delta
	f.books[id] = book
	return true
}

type fakeBorrowRepo struct {
	mu        sync.Mutex
	nextReqID int
	nextHisID int
	requests  map[int]types.BorrowRequest
	history   map[int]types.BorrowHistory
	users     *fakeUserRepo
	books     *fakeBookRepo
}

func newFakeBorrowRepo(users *fakeUserRepo, books *fakeBookRepo) *fakeBorrowRepo {
	return &fakeBorrowRepo{
		nextReqID: 1,
		nextHisID: 1,
		requests:  make(map[int]types.BorrowRequest),
		history:   make(map[int]types.BorrowHistory),
		users:     users,
		books:     books,
	}
}

func (f *fakeBorrowRepo) CreateRequest(ctx context.Context, request types.BorrowRequest) (types.BorrowRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request.ID = f.nextReqID
	request.Status = types.StatusPending
	request.CreatedAt = time.Now()
	f.nextReqID++
	f.requests[request.ID] = request
	return request, nil
}

func (f *fakeBorrowRepo) GetRequest(ctx context.Context, id int) (types.BorrowRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[id]
	if !ok {
		return types.BorrowRequest{}, store.ErrNotFound
	}
	return request, nil
}

func (f *fakeBorrowRepo) ListRequests(ctx context.Context) ([]types.BorrowRequestDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	details := make([]types.BorrowRequestDetail, 0, len(f.requests))
	for id := f.nextReqID - 1; id >= 1; id-- {
		request, ok := f.requests[id]
		if !ok {
			continue
		}
		detail := types.BorrowRequestDetail{BorrowRequest: request}
		if user, err := f.users.GetByID(ctx, request.UserID); err == nil {
			detail.UserEmail = user.Email
		}
		if book, err := f.books.Get(ctx, request.BookID); err == nil {
			detail.BookTitle = book.Title
		}
		details = append(details, detail)
	}
	return details, nil
}

func (f *fakeBorrowRepo) Approve(ctx context.Context, requestID int) (types.BorrowHistory, error) {
	f.mu.Lock()
	request, ok := f.requests[requestID]
	if !ok {
		f.mu.Unlock()
		return types.BorrowHistory{}, store.ErrNotFound
	}
	if request.Status != types.StatusPending {
		f.mu.Unlock()
		return types.BorrowHistory{}, store.ErrConflict
	}
	f.mu.Unlock()

	if !f.books.adjustQuantity(request.BookID, -1) {
		return types.BorrowHistory{}, store.ErrUnavailable
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	request.Status = types.StatusApproved
	f.requests[requestID] = request
	history := types.BorrowHistory{
		ID:         f.nextHisID,
		UserID:     request.UserID,
		BookID:     request.BookID,
		BorrowedOn: time.Now(),
	}
	f.nextHisID++
	f.history[history.ID] = history
	return history, nil
}

func (f *fakeBorrowRepo) Deny(ctx context.Context, requestID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[requestID]
	if !ok {
		return store.ErrNotFound
	}
	if request.Status != types.StatusPending {
		return store.ErrConflict
	}
	request.Status = types.StatusDenied
	f.requests[requestID] = request
	return nil
}

func (f *fakeBorrowRepo) Return(ctx context.Context, historyID int) (types.BorrowHistory, error) {
	f.mu.Lock()
	history, ok := f.history[historyID]
	if !ok {
		f.mu.Unlock()
		return types.BorrowHistory{}, store.ErrNotFound
	}
	if history.ReturnedOn != nil {
		f.mu.Unlock()
		return types.BorrowHistory{}, store.ErrConflict
	}
	now := time.Now()
	history.ReturnedOn = &now
	f.history[historyID] = history
	f.mu.Unlock()

	f.books.adjustQuantity(history.BookID, 1)
	return history, nil
}

func (f *fakeBorrowRepo) UserHistory(ctx context.Context, userID int) ([]types.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]types.HistoryEntry, 0)
	for id := f.nextHisID - 1; id >= 1; id-- {
		history, ok := f.history[id]
		if !ok || history.UserID != userID {
			continue
		}
		entry := types.HistoryEntry{BorrowHistory: history}
		if book, err := f.books.Get(ctx, history.BookID); err == nil {
			entry.BookTitle = book.Title
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (f *fakeBorrowRepo) DetailedHistory(ctx context.Context, userID int) ([]types.HistoryExportRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := make([]types.HistoryExportRow, 0)
	for id := f.nextHisID - 1; id >= 1; id-- {
		history, ok := f.history[id]
		if !ok || (userID != 0 && history.UserID != userID) {
			continue
		}
		row := types.HistoryExportRow{
			BorrowedOn: history.BorrowedOn,
			ReturnedOn: history.ReturnedOn,
		}
		if book, err := f.books.Get(ctx, history.BookID); err == nil {
			row.BookTitle = book.Title
			row.BookAuthor = book.Author
		}
		if user, err := f.users.GetByID(ctx, history.UserID); err == nil {
			row.UserEmail = user.Email
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (f *fakeBorrowRepo) Statistics(ctx context.Context, userID int) (types.BorrowStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats types.BorrowStatistics
	for _, request := range f.requests {
		if userID == 0 || request.UserID == userID {
			stats.TotalRequests++
		}
	}
	for _, history := range f.history {
		if userID != 0 && history.UserID != userID {
			continue
		}
		if history.ReturnedOn == nil {
			stats.ActiveLoans++
		} else {
			stats.ReturnedBooks++
		}
	}
	return stats, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
