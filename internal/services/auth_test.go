package services

import (
	"errors"
	"testing"
	"time"

	"iamcore/internal/models"
	"iamcore/pkg/config"
	apperrors "iamcore/pkg/errors"
	"iamcore/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(e *env) *AuthService {
	return NewAuthService(e.deps, jwt.NewJWTManager(config.JWTConfig{
		SecretKey:        "access",
		RefreshSecretKey: "refresh",
		TokenDuration:    30 * time.Minute,
		RefreshDuration:  time.Hour,
		Issuer:           "test",
	}))
}

func TestAuthService_LoginRefreshesCache(t *testing.T) {
	e := newEnv(t)
	e.domain("d1", testDomain)
	e.role("r1", "R1")
	e.user("u1", "alice", testDomain)
	_, err := e.authz().SyncUsers(e.ctx, "r1", []string{"u1"})
	require.NoError(t, err)
	// 旧条目中已撤销的角色不能保留
	require.NoError(t, e.cache.Refresh(e.ctx, "u1", []string{"REVOKED"}, time.Hour))
	svc := newAuthService(e)

	res, err := svc.Login(e.ctx, LoginInput{Identifier: "alice", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, []string{"R1"}, res.Roles)

	roles, err := e.cache.Read(e.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, roles)
	assert.Equal(t, 30*time.Minute, e.redis.TTL("auth:token:u1"))

	refreshed, err := svc.Refresh(e.ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Token)

	_, err = svc.Refresh(e.ctx, res.Token)
	assert.True(t, errors.Is(err, apperrors.ErrInvalid))

	require.NoError(t, svc.Logout(e.ctx, "u1"))
	assert.False(t, e.redis.Exists("auth:token:u1"))
}

func TestAuthService_LoginWithoutRolesCreatesNoEntry(t *testing.T) {
	e := newEnv(t)
	e.domain("d1", testDomain)
	e.user("u1", "alice", testDomain)

	res, err := newAuthService(e).Login(e.ctx, LoginInput{Identifier: "alice", Password: "secret123"})
	require.NoError(t, err)
	assert.Empty(t, res.Roles)
	assert.False(t, e.redis.Exists("auth:token:u1"))
}

func TestAuthService_LoginRejections(t *testing.T) {
	e := newEnv(t)
	e.domain("d1", testDomain)
	u := e.user("u1", "alice", testDomain)
	svc := newAuthService(e)

	_, err := svc.Login(e.ctx, LoginInput{Identifier: "alice", Password: "wrong"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalid))

	_, err = svc.Login(e.ctx, LoginInput{Identifier: "nobody", Password: "secret123"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalid))

	u.Status = models.StatusDisabled
	require.NoError(t, e.repo.Save(e.ctx, u))
	_, err = svc.Login(e.ctx, LoginInput{Identifier: "alice", Password: "secret123"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalid))
}
