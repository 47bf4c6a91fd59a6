package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"notebook-server/internal/domain"
	"notebook-server/internal/repository"
	"notebook-server/internal/testutil"
	"notebook-server/pkg/hash"
	. "notebook-server/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
)

type mockUserRepository struct {
	users  map[int64]*domain.User
	nextID int64
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[int64]*domain.User),
	}
}

func (m *mockUserRepository) Create(user *domain.User) error {
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) FindByID(id int64) (*domain.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepository) FindByUsername(username string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepository) FindByEmail(email string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserRepository) Update(user *domain.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) Delete(user *domain.User) ([]int64, error) {
	delete(m.users, user.ID)
	return nil, nil
}

func (m *mockUserRepository) List(query domain.ListQuery) (*domain.Page[*domain.User], error) {
	var users []*domain.User
	for _, u := range m.users {
		users = append(users, u)
	}
	return domain.NewPage(users, 1, len(users), len(users)), nil
}

func (m *mockUserRepository) UsernameExists(username string) (bool, error) {
	_, err := m.FindByUsername(username)
	return err == nil, nil
}

func (m *mockUserRepository) EmailExists(email string) (bool, error) {
	_, err := m.FindByEmail(email)
	return err == nil, nil
}

// mockTransactor runs work directly against in-memory repositories.
type mockTransactor struct {
	users *mockUserRepository
}

func (m *mockTransactor) Do(ctx context.Context, fn func(tx repository.Tx) error) error {
	return fn(m)
}

func (m *mockTransactor) Notes() repository.NoteRepository { return nil }

func (m *mockTransactor) Users() repository.UserRepository { return m.users }

func newAuthTestService(t *testing.T) (*AuthService, *mockUserRepository, *testutil.StubClock) {
	t.Helper()
	repo := newMockUserRepository()
	clock := testutil.FixedClock()
	service := NewAuthService(&mockTransactor{users: repo}, clock, "test-secret-key", 15*time.Minute, 7*24*time.Hour, nil)

	hashedPassword, err := hash.HashWithCost("UserPassword123!", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	repo.Create(&domain.User{
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: hashedPassword,
		IsAdmin:      true,
	})
	return service, repo, clock
}

func TestAuthService_Login(t *testing.T) {
	service, repo, clock := newAuthTestService(t)

	tests := []struct {
		name    string
		req     *domain.LoginRequest
		wantErr bool
	}{
		{
			name:    "successful login",
			req:     &domain.LoginRequest{Username: "testuser", Password: "UserPassword123!"},
			wantErr: false,
		},
		{
			name:    "wrong password",
			req:     &domain.LoginRequest{Username: "testuser", Password: "WrongPassword"},
			wantErr: true,
		},
		{
			name:    "unknown user",
			req:     &domain.LoginRequest{Username: "nobody", Password: "UserPassword123!"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := service.Login(context.Background(), tt.req)

			if tt.wantErr {
				if !errors.Is(err, domain.ErrBadCredentials) {
					t.Errorf("Login() error = %v, want ErrBadCredentials", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login() unexpected error = %v", err)
			}

			if resp.AccessToken == "" || resp.RefreshToken == "" {
				t.Error("Login() returned empty tokens")
			}
			if resp.AccessExpires >= resp.RefreshExpires {
				t.Errorf("Login() access expiry %v should precede refresh expiry %v", resp.AccessExpires, resp.RefreshExpires)
			}

			claims, err := ValidateTokenType(resp.AccessToken, "test-secret-key", TypeAccess)
			if err != nil {
				t.Fatalf("access token invalid: %v", err)
			}
			if claims.Username() != "testuser" || !claims.IsAdmin || claims.UserID != 1 {
				t.Errorf("unexpected access claims %+v", claims)
			}

			user, _ := repo.FindByUsername("testuser")
			if !user.LastSeen.Equal(clock.Now()) {
				t.Errorf("Login() last_seen = %v, want %v", user.LastSeen, clock.Now())
			}
		})
	}
}

func TestAuthService_Refresh(t *testing.T) {
	service, repo, _ := newAuthTestService(t)

	login, err := service.Login(context.Background(), &domain.LoginRequest{Username: "testuser", Password: "UserPassword123!"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// Revoked rights show up in the refreshed token.
	user, _ := repo.FindByUsername("testuser")
	user.IsAdmin = false

	refreshed, err := service.Refresh(context.Background(), &domain.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	claims, err := ValidateTokenType(refreshed.AccessToken, "test-secret-key", TypeAccess)
	if err != nil {
		t.Fatalf("refreshed access token invalid: %v", err)
	}
	if claims.IsAdmin {
		t.Error("Refresh() kept a revoked admin claim")
	}

	tests := []struct {
		name  string
		token string
	}{
		{"access token", login.AccessToken},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Refresh(context.Background(), &domain.RefreshTokenRequest{RefreshToken: tt.token})
			if !errors.Is(err, domain.ErrBadCredentials) {
				t.Errorf("Refresh() error = %v, want ErrBadCredentials", err)
			}
		})
	}
}

func TestAuthService_RefreshDeletedUser(t *testing.T) {
	service, repo, _ := newAuthTestService(t)

	login, err := service.Login(context.Background(), &domain.LoginRequest{Username: "testuser", Password: "UserPassword123!"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	user, _ := repo.FindByUsername("testuser")
	repo.Delete(user)

	if _, err := service.Refresh(context.Background(), &domain.RefreshTokenRequest{RefreshToken: login.RefreshToken}); !errors.Is(err, domain.ErrBadCredentials) {
		t.Errorf("Refresh() error = %v, want ErrBadCredentials", err)
	}
}
