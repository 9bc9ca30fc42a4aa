package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/booklend/apiserver/internal/services"
	"github.com/booklend/apiserver/internal/store"
	"github.com/booklend/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = 24 * time.Hour

// FailureRecorder counts failed login attempts.
type FailureRecorder interface {
	RecordLoginFailure()
}

// AuthHandler owns login and the dual-mode authentication middleware.
type AuthHandler struct {
	userService *services.UserService
	secret      []byte
	tokenTTL    time.Duration
	limiter     *loginLimiter
	metrics     FailureRecorder
}

// NewAuthHandler constructs an AuthHandler with the provided
// dependencies.
func NewAuthHandler(userService *services.UserService, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		secret:      []byte(jwtSecret),
		tokenTTL:    defaultTokenTTL,
		limiter:     newLoginLimiter(),
	}
}

// WithMetrics attaches an optional login failure recorder.
func (h *AuthHandler) WithMetrics(metrics FailureRecorder) *AuthHandler {
	h.metrics = metrics
	return h
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/login", handler.Login)
}

// credential is the tagged result of parsing an Authorization header.
type credential interface{ credential() }

type basicCredential struct {
	email    string
	password string
}

type bearerCredential struct {
	token string
}

func (basicCredential) credential()  {}
func (bearerCredential) credential() {}

// parseAuthorization classifies an Authorization header value as Basic
// credentials or a Bearer token. Any other scheme, or a malformed
// value, is an error.
func parseAuthorization(header string) (credential, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, errors.New("missing authorization")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return nil, errors.New("invalid authorization")
	}
	value := strings.TrimSpace(parts[1])
	if value == "" {
		return nil, errors.New("invalid authorization")
	}

	switch {
	case strings.EqualFold(parts[0], "Basic"):
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, errors.New("invalid basic credentials")
		}
		email, password, found := strings.Cut(string(decoded), ":")
		if !found || email == "" {
			return nil, errors.New("invalid basic credentials")
		}
		return basicCredential{email: email, password: password}, nil
	case strings.EqualFold(parts[0], "Bearer"):
		return bearerCredential{token: value}, nil
	default:
		return nil, errors.New("unsupported authorization scheme")
	}
}

// RequireAuth authenticates the request via Basic credentials or a
// Bearer token and injects the principal into the request context.
// Both paths verify the user against the store; a token whose user no
// longer exists does not authenticate.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, err := parseAuthorization(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var user types.User
		switch c := cred.(type) {
		case basicCredential:
			user, err = h.userService.GetByEmail(r.Context(), c.email)
			if err == nil {
				err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(c.password))
			}
		case bearerCredential:
			var claims authClaims
			claims, err = parseToken(c.token, h.secret)
			if err == nil {
				user, err = h.userService.GetByID(r.Context(), claims.userID())
			}
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		principal := types.Principal{ID: user.ID, Email: user.Email, Role: user.Role}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireLibrarian gates an endpoint on the librarian role. Must run
// after RequireAuth.
func RequireLibrarian(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := principalFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if principal.Role != types.RoleLibrarian {
			writeError(w, http.StatusForbidden, "librarian role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string          `json:"token"`
	User  types.Principal `json:"user"`
}

// Login verifies credentials and mints a token. This is the only place
// tokens are issued. Whether the email is unknown or the password is
// wrong, the response is the same generic failure.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.userService.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.recordLoginFailure()
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.recordLoginFailure()
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := issueToken(user, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token: token,
		User:  types.Principal{ID: user.ID, Email: user.Email, Role: user.Role},
	})
}

func (h *AuthHandler) recordLoginFailure() {
	if h.metrics != nil {
		h.metrics.RecordLoginFailure()
	}
}

// authClaims carries the identity embedded in a token. The subject is
// the user id; email and role ride along for consumers but the
// middleware re-verifies the user against the store.
type authClaims struct {
	Email string     `json:"email"`
	Role  types.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c authClaims) userID() int {
	id, err := strconv.Atoi(strings.TrimSpace(c.Subject))
	if err != nil {
		return 0
	}
	return id
}

func issueToken(user types.User, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := authClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseToken(tokenString string, secret []byte) (authClaims, error) {
	claims := authClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return authClaims{}, err
	}
	if !token.Valid {
		return authClaims{}, errors.New("invalid token")
	}
	if claims.userID() < 1 {
		return authClaims{}, errors.New("invalid subject")
	}
	return claims, nil
}
