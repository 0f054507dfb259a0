package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/tokyo-express/internal/domain"
)

// DefaultCost is the bcrypt cost for new password hashes.
const DefaultCost = 10

// CreateInput holds the fields of a new user. Role defaults to admin.
type CreateInput struct {
	Login    string
	Password string
	Role     Role
	Name     string
}

// UpdateInput holds optional changes to a user. Empty strings and a nil
// Name leave the field unchanged.
type UpdateInput struct {
	Login    string
	Password string
	Role     Role
	Name     *string
}

// NormalizeLogin trims and lower-cases a login.
func NormalizeLogin(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Service implements staff account management and password checks.
type Service struct {
	repo Repository
	cost int
	now  func() time.Time
}

// NewService creates a user Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: DefaultCost, now: time.Now}
}

// List returns all users, newest first.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates the input, hashes the password and stores the user.
func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	login := NormalizeLogin(in.Login)
	if login == "" || in.Password == "" {
		return nil, domain.Invalid("login", "login and password are required")
	}
	role := in.Role
	if role == "" {
		role = RoleAdmin
	}
	if !role.Valid() {
		return nil, domain.Invalid("role", fmt.Sprintf("unknown role %q", role))
	}
	if err := s.ensureLoginFree(ctx, login, ""); err != nil {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u := &User{
		Login:        login,
		PasswordHash: hash,
		Role:         role,
		Name:         strings.TrimSpace(in.Name),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Update applies the non-empty fields of in.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if login := NormalizeLogin(in.Login); login != "" && login != u.Login {
		if err := s.ensureLoginFree(ctx, login, id); err != nil {
			return nil, err
		}
		u.Login = login
	}
	if in.Password != "" {
		if u.PasswordHash, err = s.hash(in.Password); err != nil {
			return nil, err
		}
	}
	if in.Role != "" {
		if !in.Role.Valid() {
			return nil, domain.Invalid("role", fmt.Sprintf("unknown role %q", in.Role))
		}
		u.Role = in.Role
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}

	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return u, nil
}

// Delete removes a user. actorID is the caller, who cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if actorID != "" && actorID == id {
		return ErrDeleteSelf
	}
	return s.repo.Delete(ctx, id)
}

// Authenticate returns the user with the given credentials. Any mismatch is
// reported as ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	login = NormalizeLogin(login)
	if login == "" || password == "" {
		return nil, domain.Invalid("login", "login and password are required")
	}
	u, err := s.repo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user by login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) ensureLoginFree(ctx context.Context, login, selfID string) error {
	existing, err := s.repo.GetByLogin(ctx, login)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("get user by login: %w", err)
	case existing.ID != selfID:
		return ErrDuplicateLogin
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.Invalid("password", "password is too long")
		}
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}
