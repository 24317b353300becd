package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/autoecole-dz/platform-api/internal/models"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
)

type mockAuthRepo struct {
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	refreshTokens map[string]*models.RefreshToken
	revokedAll    []string
	auditActions  []string
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		usersByEmail:  make(map[string]*models.User),
		usersByID:     make(map[string]*models.User),
		refreshTokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockAuthRepo) addUser(user *models.User) {
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	m.addUser(user)
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if u, ok := m.usersByID[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if u, ok := m.usersByID[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	for _, t := range m.refreshTokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, t := range m.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditActions = append(m.auditActions, log.Action)
	return nil
}

func authTestConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "unit-test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "autoecole-dz",
	}
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), authTestConfig())
}

func seedUser(repo *mockAuthRepo, role models.UserRole, password string) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{
		ID:           "u1",
		Email:        "amine@example.dz",
		PasswordHash: string(hash),
		FirstName:    "Amine",
		LastName:     "Bouzid",
		Phone:        "+213555000111",
		Role:         role,
		Active:       true,
	}
	repo.addUser(user)
	return user
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "Nadia@Example.DZ",
		Password:  "secret123",
		FirstName: "Nadia",
		LastName:  "Kaci",
		Phone:     "+213661234567",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	// New accounts always start as guests regardless of input.
	assert.Equal(t, models.RoleGuest, resp.User.Role)
	assert.Equal(t, "nadia@example.dz", resp.User.Email)
	assert.Contains(t, repo.auditActions, models.AuditActionRegister)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockAuthRepo()
	seedUser(repo, models.RoleGuest, "secret123")
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:     "amine@example.dz",
		Password:  "secret123",
		FirstName: "Amine",
		LastName:  "Bouzid",
		Phone:     "+213555000111",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, models.RoleStudent, "secret123")
	svc := newAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.NotNil(t, repo.usersByID[user.ID].LastLogin)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginBadPassword(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, models.RoleStudent, "secret123")
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, models.RoleStudent, "secret123")
	user.Active = false
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotation(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, models.RoleStudent, "secret123")
	svc := newAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token was rotated out and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, models.RoleStudent, "secret123")
	svc := newAuthService(repo)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, user.ID, "127.0.0.1", "test"))
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	err = svc.Logout(context.Background(), login.RefreshToken, "someone-else", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, models.RoleStudent, "secret123")
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "stronger456",
	})
	require.NoError(t, err)
	assert.Contains(t, repo.revokedAll, user.ID)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "stronger456"})
	require.NoError(t, err)
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	repo := newMockAuthRepo()
	user := seedUser(repo, models.RoleStudent, "secret123")
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		OldPassword: "nope",
		NewPassword: "stronger456",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(newMockAuthRepo())

	_, err := svc.ValidateToken("not-a-jwt")
	require.Error(t, err)
}
