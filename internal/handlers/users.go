package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/booklend/apiserver/internal/services"
	"github.com/booklend/apiserver/internal/store"
	"github.com/booklend/apiserver/types"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler provides user management and history endpoints.
type UserHandler struct {
	userService   *services.UserService
	borrowService *services.BorrowService
}

func NewUserHandler(userService *services.UserService, borrowService *services.BorrowService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		borrowService: borrowService,
	}
}

// UserRouter registers user routes on given router.
func UserRouter(r chi.Router, handler *UserHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware, RequireLibrarian).Post("/", handler.CreateUser)
	r.With(authMiddleware).Get("/{userID}/history", handler.UserHistory)
}

type CreateUserRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     types.Role `json:"role"`
}

type CreateUserResponse struct {
	UserID int `json:"user_id"`
}

// CreateUser creates an account with the given role. Librarian only.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if req.Role == "" {
		req.Role = types.RoleUser
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user, err := h.userService.Create(r.Context(), types.User{
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: string(hashed),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			writeError(w, http.StatusBadRequest, "email already exists")
		case errors.Is(err, services.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid role")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, CreateUserResponse{UserID: user.ID})
}

// UserHistory returns a user's borrow history. Users may only view
// their own; librarians may view anyone's.
func (h *UserHandler) UserHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if principal.Role != types.RoleLibrarian && principal.ID != userID {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	history, err := h.borrowService.UserHistory(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}

	writeJSON(w, http.StatusOK, history)
}
