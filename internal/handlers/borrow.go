package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/booklend/apiserver/internal/services"
	"github.com/booklend/apiserver/internal/store"
	"github.com/booklend/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

// BorrowHandler provides borrow request lifecycle endpoints.
type BorrowHandler struct {
	borrowService *services.BorrowService
	exportService *services.ExportService
}

func NewBorrowHandler(borrowService *services.BorrowService, exportService *services.ExportService) *BorrowHandler {
	return &BorrowHandler{
		borrowService: borrowService,
		exportService: exportService,
	}
}

// BorrowRouter registers borrow request routes on the given router.
// The return route is keyed by the borrow-history id, where the
// returned timestamp lives.
func BorrowRouter(r chi.Router, handler *BorrowHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Post("/", handler.CreateRequest)
	r.With(authMiddleware, RequireLibrarian).Get("/", handler.ListRequests)
	r.With(authMiddleware).Get("/statistics", handler.Statistics)
	r.With(authMiddleware).Get("/export-history", handler.ExportHistory)
	r.With(authMiddleware, RequireLibrarian).Put("/{requestID}/approve", handler.ApproveRequest)
	r.With(authMiddleware, RequireLibrarian).Put("/{requestID}/deny", handler.DenyRequest)
	r.With(authMiddleware).Put("/{historyID}/return", handler.ReturnLoan)
}

type CreateBorrowRequest struct {
	BookID    int    `json:"book_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type CreateBorrowResponse struct {
	RequestID int `json:"request_id"`
}

// CreateRequest submits a pending borrow request for the caller.
func (h *BorrowHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateBorrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.BookID < 1 {
		writeError(w, http.StatusBadRequest, "book id is required")
		return
	}

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date")
		return
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date")
		return
	}

	request, err := h.borrowService.Create(r.Context(), principal.ID, req.BookID, startDate, endDate)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "book not found")
		case errors.Is(err, store.ErrUnavailable):
			writeError(w, http.StatusBadRequest, "book not available")
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "start date must not be after end date")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create request")
		}
		return
	}

	writeJSON(w, http.StatusCreated, CreateBorrowResponse{RequestID: request.ID})
}

// ListRequests returns all requests joined with user and book.
// Librarian only.
func (h *BorrowHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.borrowService.ListRequests(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}

	writeJSON(w, http.StatusOK, requests)
}

// ApproveRequest decides a pending request in the borrower's favor.
func (h *BorrowHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseIDParam(r, "requestID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.borrowService.Approve(r.Context(), requestID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "request not found")
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusBadRequest, "request already decided")
		case errors.Is(err, store.ErrUnavailable):
			writeError(w, http.StatusBadRequest, "book not available")
		default:
			writeError(w, http.StatusInternalServerError, "failed to approve request")
		}
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// DenyRequest decides a pending request against the borrower.
func (h *BorrowHandler) DenyRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := parseIDParam(r, "requestID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.borrowService.Deny(r.Context(), requestID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "request not found")
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusBadRequest, "request already decided")
		default:
			writeError(w, http.StatusInternalServerError, "failed to deny request")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "request denied"})
}

// ReturnLoan closes an open loan and restores the book's quantity.
func (h *BorrowHandler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	historyID, err := parseIDParam(r, "historyID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.borrowService.Return(r.Context(), historyID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "loan not found")
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusBadRequest, "loan already returned")
		default:
			writeError(w, http.StatusInternalServerError, "failed to return loan")
		}
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// Statistics returns aggregate counts, scoped to the caller unless
// they are a librarian.
func (h *BorrowHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.borrowService.Statistics(r.Context(), scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ExportHistory streams the borrow history as a CSV download, scoped
// to the caller unless they are a librarian.
func (h *BorrowHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	data, err := h.exportService.HistoryCSVArchived(r.Context(), scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export history")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="borrow_history.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// scopeUserID returns zero (all users) for librarians and the caller's
// own id otherwise.
func scopeUserID(r *http.Request) (int, error) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		return 0, err
	}
	if principal.Role == types.RoleLibrarian {
		return 0, nil
	}
	return principal.ID, nil
}
