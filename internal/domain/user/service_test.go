package user

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/tokyo-express/internal/domain"
)

type mockRepo struct {
	byID map[string]*User
	seq  int
}

func newMockRepo() *mockRepo {
	return &mockRepo{byID: make(map[string]*User)}
}

func (m *mockRepo) List(context.Context) ([]User, error) {
	out := make([]User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepo) GetByLogin(_ context.Context, login string) (*User, error) {
	for _, u := range m.byID {
		if u.Login == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	m.seq++
	u.ID = fmt.Sprintf("u%d", m.seq)
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, u *User) error {
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	s := NewService(repo)
	s.cost = bcrypt.MinCost
	s.now = func() time.Time { return time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC) }
	return s, repo
}

func TestService_Create(t *testing.T) {
	s, _ := newTestService()

	u, err := s.Create(context.Background(), CreateInput{Login: "  Chef ", Password: "wasabi", Name: " Hiro "})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "chef", u.Login)
	assert.Equal(t, RoleAdmin, u.Role)
	assert.Equal(t, "Hiro", u.Name)
	assert.NotEqual(t, "wasabi", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("wasabi")))
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		in      CreateInput
		wantErr error
	}{
		{name: "no login", in: CreateInput{Password: "x"}, wantErr: domain.ErrInvalid},
		{name: "no password", in: CreateInput{Login: "x"}, wantErr: domain.ErrInvalid},
		{name: "bad role", in: CreateInput{Login: "x", Password: "y", Role: "owner"}, wantErr: domain.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestService()
			_, err := s.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_Create_DuplicateLogin(t *testing.T) {
	s, _ := newTestService()
	_, err := s.Create(context.Background(), CreateInput{Login: "admin", Password: "a"})
	require.NoError(t, err)

	_, err = s.Create(context.Background(), CreateInput{Login: "ADMIN", Password: "b"})
	assert.ErrorIs(t, err, ErrDuplicateLogin)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestService_Update(t *testing.T) {
	s, _ := newTestService()
	a, err := s.Create(context.Background(), CreateInput{Login: "anna", Password: "one", Role: RoleManager})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), CreateInput{Login: "boris", Password: "two"})
	require.NoError(t, err)

	t.Run("login taken by another user", func(t *testing.T) {
		_, err := s.Update(context.Background(), a.ID, UpdateInput{Login: "Boris"})
		assert.ErrorIs(t, err, ErrDuplicateLogin)
	})

	t.Run("same login is not a conflict", func(t *testing.T) {
		_, err := s.Update(context.Background(), a.ID, UpdateInput{Login: "anna"})
		assert.NoError(t, err)
	})

	t.Run("partial update", func(t *testing.T) {
		name := "Anna K."
		u, err := s.Update(context.Background(), a.ID, UpdateInput{Password: "three", Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "anna", u.Login)
		assert.Equal(t, RoleManager, u.Role)
		assert.Equal(t, "Anna K.", u.Name)

		_, err = s.Authenticate(context.Background(), "anna", "three")
		assert.NoError(t, err)
	})

	t.Run("bad role", func(t *testing.T) {
		_, err := s.Update(context.Background(), a.ID, UpdateInput{Role: "root"})
		assert.ErrorIs(t, err, domain.ErrInvalid)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := s.Update(context.Background(), "nope", UpdateInput{})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestService_Delete(t *testing.T) {
	s, repo := newTestService()
	u, err := s.Create(context.Background(), CreateInput{Login: "temp", Password: "x"})
	require.NoError(t, err)

	err = s.Delete(context.Background(), u.ID, u.ID)
	assert.ErrorIs(t, err, ErrDeleteSelf)
	assert.Len(t, repo.byID, 1)

	require.NoError(t, s.Delete(context.Background(), "someone-else", u.ID))
	assert.Empty(t, repo.byID)
}

func TestService_Authenticate(t *testing.T) {
	s, _ := newTestService()
	_, err := s.Create(context.Background(), CreateInput{Login: "admin", Password: "secret"})
	require.NoError(t, err)

	u, err := s.Authenticate(context.Background(), " Admin ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Login)

	_, err = s.Authenticate(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = s.Authenticate(context.Background(), "ghost", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Authenticate(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrInvalid)
}
