package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

type mockUserRepo struct {
	users          map[string]*models.User
	lastLoginCalls int
	lastLoginErr   error
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.users[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginCalls++
	return m.lastLoginErr
}

func newAuthFixture(t *testing.T, domain string) (*AuthService, *mockUserRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mockUserRepo{users: map[string]*models.User{
		"dean@srmist.edu.in": {
			ID:           "user-1",
			Email:        "dean@srmist.edu.in",
			PasswordHash: string(hash),
			Role:         models.RoleAdmin,
			Active:       true,
		},
		"retired@srmist.edu.in": {
			ID:           "user-2",
			Email:        "retired@srmist.edu.in",
			PasswordHash: string(hash),
			Role:         models.RoleViewer,
			Active:       false,
		},
	}}

	svc := NewAuthService(repo, nil, nil, AuthConfig{
		Secret:             "test-secret",
		Expiration:         time.Hour,
		AllowedEmailDomain: domain,
	})
	return svc, repo
}

func TestLoginSuccess(t *testing.T) {
	svc, repo := newAuthFixture(t, "@srmist.edu.in")

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dean@srmist.edu.in",
		Password: "s3cret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, 1, repo.lastLoginCalls)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t, "")

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@srmist.edu.in",
		Password: "s3cret",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, repo := newAuthFixture(t, "")

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dean@srmist.edu.in",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.lastLoginCalls)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture(t, "")

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "retired@srmist.edu.in",
		Password: "s3cret",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsForeignEmailDomain(t *testing.T) {
	svc, _ := newAuthFixture(t, "@srmist.edu.in")

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dean@example.com",
		Password: "s3cret",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	svc, _ := newAuthFixture(t, "")

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthFixture(t, "")
	other, _ := newAuthFixture(t, "")
	other.config.Secret = "different-secret"

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "dean@srmist.edu.in",
		Password: "s3cret",
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t, "")

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
