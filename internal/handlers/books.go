package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/booklend/apiserver/internal/services"
	"github.com/booklend/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// BookHandler provides catalog endpoints.
type BookHandler struct {
	bookService *services.BookService
}

func NewBookHandler(bookService *services.BookService) *BookHandler {
	return &BookHandler{bookService: bookService}
}

// BookRouter registers book routes on the given router. All catalog
// reads require authentication; creation is librarian only.
func BookRouter(r chi.Router, handler *BookHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Get("/", handler.ListBooks)
	r.With(authMiddleware).Get("/statistics", handler.Statistics)
	r.With(authMiddleware, RequireLibrarian).Post("/", handler.CreateBook)
}

// ListBooks lists the catalog, optionally narrowed by a search term
// over title/author or an availability filter.
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	var available *bool
	if raw := strings.TrimSpace(r.URL.Query().Get("available")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid available filter")
			return
		}
		available = &parsed
	}

	books, err := h.bookService.Find(r.Context(), search, available)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list books")
		return
	}

	writeJSON(w, http.StatusOK, books)
}

func (h *BookHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.bookService.Statistics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

type CreateBookRequest struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Quantity int    `json:"quantity"`
}

// CreateBook adds a catalog entry. Librarian only.
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	book, err := h.bookService.Create(r.Context(), types.Book{
		Title:    req.Title,
		Author:   req.Author,
		Quantity: req.Quantity,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "title and author are required")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create book")
		return
	}

	writeJSON(w, http.StatusCreated, book)
}
