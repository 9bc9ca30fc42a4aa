package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/booklend/apiserver/internal/services"
	"github.com/booklend/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthHandler(t *testing.T) (*AuthHandler, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	handler := NewAuthHandler(services.NewUserService(users), "test-secret")
	return handler, users
}

func createTestUser(t *testing.T, users *fakeUserRepo, email, password string, role types.Role) types.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := users.Create(context.Background(), types.User{
		Email:        email,
		Role:         role,
		PasswordHash: string(hashed),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func basicAuthHeader(email, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))
}

func TestParseAuthorization(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    credential
		wantErr bool
	}{
		{
			name:   "basic",
			header: basicAuthHeader("user@example.com", "secret"),
			want:   basicCredential{email: "user@example.com", password: "secret"},
		},
		{
			name:   "basic lowercase scheme",
			header: "basic " + base64.StdEncoding.EncodeToString([]byte("user@example.com:secret")),
			want:   basicCredential{email: "user@example.com", password: "secret"},
		},
		{
			name:   "basic password containing colon",
			header: basicAuthHeader("user@example.com", "pa:ss"),
			want:   basicCredential{email: "user@example.com", password: "pa:ss"},
		},
		{
			name:   "bearer",
			header: "Bearer some.token.value",
			want:   bearerCredential{token: "some.token.value"},
		},
		{name: "empty", header: "", wantErr: true},
		{name: "scheme only", header: "Bearer", wantErr: true},
		{name: "unknown scheme", header: "Digest abc", wantErr: true},
		{name: "invalid base64", header: "Basic %%%", wantErr: true},
		{
			name:    "basic without colon",
			header:  "Basic " + base64.StdEncoding.EncodeToString([]byte("user@example.com")),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAuthorization(tt.header)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %#v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	user := types.User{ID: 7, Email: "user@example.com", Role: types.RoleLibrarian}

	token, err := issueToken(user, secret, defaultTokenTTL)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := parseToken(token, secret)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.userID() != 7 {
		t.Errorf("user id = %d, want 7", claims.userID())
	}
	if claims.Email != "user@example.com" {
		t.Errorf("email = %q, want %q", claims.Email, "user@example.com")
	}
	if claims.Role != types.RoleLibrarian {
		t.Errorf("role = %q, want %q", claims.Role, types.RoleLibrarian)
	}

	expiresIn := time.Until(claims.ExpiresAt.Time)
	if expiresIn < 23*time.Hour || expiresIn > 24*time.Hour {
		t.Errorf("token expires in %v, want about 24h", expiresIn)
	}
}

func TestParseTokenRejections(t *testing.T) {
	secret := []byte("test-secret")
	user := types.User{ID: 3, Email: "user@example.com", Role: types.RoleUser}

	expired, err := issueToken(user, secret, -time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := parseToken(expired, secret); err == nil {
		t.Error("expected error for expired token")
	}

	token, err := issueToken(user, secret, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := parseToken(token, []byte("other-secret")); err == nil {
		t.Error("expected error for wrong secret")
	}

	if _, err := parseToken("not-a-token", secret); err == nil {
		t.Error("expected error for garbage token")
	}
}

func TestLogin(t *testing.T) {
	handler, users := newTestAuthHandler(t)
	user := createTestUser(t, users, "user@example.com", "password123", types.RoleUser)

	doLogin := func(t *testing.T, email, password string) *httptest.ResponseRecorder {
		t.Helper()
		body, _ := json.Marshal(LoginRequest{Email: email, Password: password})
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		return rec
	}

	t.Run("success", func(t *testing.T) {
		rec := doLogin(t, "user@example.com", "password123")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
		}

		var resp LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Token == "" {
			t.Error("expected a token")
		}
		if resp.User.ID != user.ID || resp.User.Email != user.Email || resp.User.Role != user.Role {
			t.Errorf("user = %+v, want %+v", resp.User, user)
		}

		claims, err := parseToken(resp.Token, []byte("test-secret"))
		if err != nil {
			t.Fatalf("parse issued token: %v", err)
		}
		if claims.userID() != user.ID {
			t.Errorf("token user id = %d, want %d", claims.userID(), user.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := doLogin(t, "user@example.com", "wrong")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		rec := doLogin(t, "nobody@example.com", "password123")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := doLogin(t, "", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestLoginRateLimited(t *testing.T) {
	handler, users := newTestAuthHandler(t)
	createTestUser(t, users, "user@example.com", "password123", types.RoleUser)

	body, _ := json.Marshal(LoginRequest{Email: "user@example.com", Password: "wrong"})
	var last int
	for i := 0; i < loginBurst+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
		req.RemoteAddr = "10.0.0.9:4321"
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status after exhausting burst = %d, want %d", last, http.StatusTooManyRequests)
	}

	// Other clients are limited independently.
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.RemoteAddr = "10.0.0.10:4321"
	rec := httptest.NewRecorder()
	handler.Login(rec, req)
	if rec.Code == http.StatusTooManyRequests {
		t.Fatalf("distinct client was rate limited")
	}
}

func TestRequireAuth(t *testing.T) {
	handler, users := newTestAuthHandler(t)
	user := createTestUser(t, users, "user@example.com", "password123", types.RoleUser)

	var gotPrincipal types.Principal
	wrapped := handler.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal, _ = principalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	do := func(t *testing.T, authorization string) *httptest.ResponseRecorder {
		t.Helper()
		gotPrincipal = types.Principal{}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		return rec
	}

	t.Run("basic", func(t *testing.T) {
		rec := do(t, basicAuthHeader("user@example.com", "password123"))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if gotPrincipal.ID != user.ID || gotPrincipal.Role != types.RoleUser {
			t.Errorf("principal = %+v", gotPrincipal)
		}
	})

	t.Run("basic wrong password", func(t *testing.T) {
		rec := do(t, basicAuthHeader("user@example.com", "wrong"))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("bearer", func(t *testing.T) {
		token, err := issueToken(user, []byte("test-secret"), time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		rec := do(t, "Bearer "+token)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if gotPrincipal.Email != user.Email {
			t.Errorf("principal = %+v", gotPrincipal)
		}
	})

	t.Run("bearer for deleted user", func(t *testing.T) {
		token, err := issueToken(user, []byte("test-secret"), time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		users.delete(user.ID)
		defer func() { users.users[user.ID] = user }()

		rec := do(t, "Bearer "+token)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		rec := do(t, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		rec := do(t, "Digest abc")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}

func TestRequireLibrarian(t *testing.T) {
	wrapped := RequireLibrarian(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(principal *types.Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if principal != nil {
			req = req.WithContext(ContextWithPrincipal(req.Context(), *principal))
		}
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(&types.Principal{ID: 1, Role: types.RoleLibrarian}); rec.Code != http.StatusOK {
		t.Errorf("librarian: status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := do(&types.Principal{ID: 2, Role: types.RoleUser}); rec.Code != http.StatusForbidden {
		t.Errorf("user: status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if rec := do(nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no principal: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
