package service

import (
	"context"
	"testing"

	"tirestock/internal/apperr"
	"tirestock/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWTSecret = []byte("test_secret")

func newUserService(t *testing.T) UserService {
	t.Helper()
	db := openTestDB(t)
	return NewUserService(repository.NewUserRepository(db), testJWTSecret)
}

func TestCreateUserValidatesAndHashes(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "alice", Email: "alice@tirestock.local", Phone: "0901", Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.Moderator)

	_, err = svc.CreateUser(ctx, CreateUserRequest{
		Username: "alice", Email: "other@tirestock.local", Phone: "0902", Password: "secret1",
	})
	assert.True(t, apperr.IsValidation(err), "duplicate username rejected")

	_, err = svc.CreateUser(ctx, CreateUserRequest{
		Username: "bob", Email: "not-an-email", Phone: "0903", Password: "secret1",
	})
	assert.True(t, apperr.IsValidation(err))
}

func TestLoginIssuesTokenPairWithModeratorClaim(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "root", Email: "root@tirestock.local", Phone: "0", Password: "secret1", Moderator: true,
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginUserRequest{Email: "root@tirestock.local", Password: "wrong"})
	assert.Error(t, err)

	pair, err := svc.Login(ctx, LoginUserRequest{Email: "root@tirestock.local", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	token, err := jwt.Parse(pair.AccessToken, func(*jwt.Token) (interface{}, error) {
		return testJWTSecret, nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, created.ID.String(), claims["sub"])
	assert.Equal(t, true, claims["moderator"])
}

func TestRefreshRotatesTokenFamily(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "carol", Email: "carol@tirestock.local", Phone: "0", Password: "secret1",
	})
	require.NoError(t, err)

	first, err := svc.Login(ctx, LoginUserRequest{Email: "carol@tirestock.local", Password: "secret1"})
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The rotated-out token is dead
	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.Error(t, err)

	// Logout kills the current one too
	token, err := jwt.Parse(second.AccessToken, func(*jwt.Token) (interface{}, error) {
		return testJWTSecret, nil
	})
	require.NoError(t, err)
	sub := token.Claims.(jwt.MapClaims)["sub"].(string)
	require.NoError(t, svc.Logout(ctx, sub))
	_, err = svc.Refresh(ctx, second.RefreshToken)
	assert.Error(t, err)
}
