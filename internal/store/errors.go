package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a lifecycle transition is attempted out
// of a terminal state, e.g. approving an already decided request or
// returning a loan twice.
var ErrConflict = errors.New("conflict")

// ErrUnavailable is returned when a book has no available copies.
var ErrUnavailable = errors.New("book unavailable")

// ErrDuplicateEmail is returned when a user creation hits the unique
// email constraint.
var ErrDuplicateEmail = errors.New("email already exists")
