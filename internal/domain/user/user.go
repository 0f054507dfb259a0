// Package user manages back-office staff accounts.
package user

import (
	"context"
	"time"

	"github.com/xenking/tokyo-express/internal/domain"
)

// Role grants access to the back office.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager
}

// Staff reports whether r may use the back office.
func (r Role) Staff() bool {
	return r.Valid()
}

var (
	// ErrNotFound is returned when a user id or login does not exist.
	ErrNotFound = domain.NotFound("user")
	// ErrDuplicateLogin is returned when a login is already taken.
	ErrDuplicateLogin = errDuplicateLogin{}
	// ErrInvalidCredentials hides whether the login or the password was wrong.
	ErrInvalidCredentials = errInvalidCredentials{}
	// ErrDeleteSelf is returned when a user tries to delete their own account.
	ErrDeleteSelf = domain.Invalid("id", "cannot delete yourself")
)

type errDuplicateLogin struct{}

func (errDuplicateLogin) Error() string { return "login already exists" }
func (errDuplicateLogin) Unwrap() error { return domain.ErrConflict }

type errInvalidCredentials struct{}

func (errInvalidCredentials) Error() string { return "invalid login or password" }
func (errInvalidCredentials) Unwrap() error { return domain.ErrUnauthorized }

// User is a staff account. PasswordHash is a bcrypt hash.
type User struct {
	ID           string
	Login        string
	PasswordHash string
	Role         Role
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository defines persistence operations for users. Logins are stored
// normalized, so GetByLogin expects a normalized login.
type Repository interface {
	// List returns all users, newest first.
	List(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
}
