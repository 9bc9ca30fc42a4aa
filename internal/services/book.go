package services

import (
	"context"
	"strings"

	"github.com/booklend/apiserver/types"
)

// BookRepository defines persistence operations for catalog entries.
type BookRepository interface {
	Get(ctx context.Context, id int) (types.Book, error)
	List(ctx context.Context) ([]types.Book, error)
	Search(ctx context.Context, term string) ([]types.Book, error)
	ListByAvailability(ctx context.Context, available bool) ([]types.Book, error)
	Create(ctx context.Context, book types.Book) (types.Book, error)
	Statistics(ctx context.Context) (types.BookStatistics, error)
}

// BookService encapsulates catalog use-cases.
type BookService struct {
	repo BookRepository
}

func NewBookService(repo BookRepository) *BookService {
	return &BookService{repo: repo}
}

func (s *BookService) Get(ctx context.Context, id int) (types.Book, error) {
	return s.repo.Get(ctx, id)
}

// Find lists the catalog, narrowed by a search term and/or an
// availability filter. A search term takes precedence, matching the
// behavior the API has always had.
func (s *BookService) Find(ctx context.Context, search string, available *bool) ([]types.Book, error) {
	search = strings.TrimSpace(search)
	if search != "" {
		return s.repo.Search(ctx, search)
	}
	if available != nil {
		return s.repo.ListByAvailability(ctx, *available)
	}
	return s.repo.List(ctx)
}

func (s *BookService) Create(ctx context.Context, book types.Book) (types.Book, error) {
	if strings.TrimSpace(book.Title) == "" || strings.TrimSpace(book.Author) == "" || book.Quantity < 0 {
		return types.Book{}, ErrInvalidInput
	}
	return s.repo.Create(ctx, book)
}

func (s *BookService) Statistics(ctx context.Context) (types.BookStatistics, error) {
	return s.repo.Statistics(ctx)
}
