package types

import "time"

// Role is the closed set of authorization levels a user can hold.
type Role string

const (
	// RoleLibrarian can manage the catalog, create users, and decide
	// borrow requests.
	RoleLibrarian Role = "librarian"

	// RoleUser can search books, submit borrow requests, and view
	// their own history.
	RoleUser Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleLibrarian || r == RoleUser
}

// User represents an account in the system.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the unique login address of the user.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Principal is the authenticated identity attached to a request after
// the credentials have been verified against the store.
type Principal struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
