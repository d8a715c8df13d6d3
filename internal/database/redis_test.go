package database

import (
	"context"
	"strconv"
	"testing"
	"time"

	"iamcore/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfig(t *testing.T, mr *miniredis.Miniredis) *config.Config {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return &config.Config{
		Redis: config.RedisConfig{Host: mr.Host(), Port: port, Prefix: "auth:token:"},
		Authz: config.AuthzConfig{StoreTimeout: 200 * time.Millisecond},
	}
}

func TestInitializeAuthorityCache(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := InitializeAuthorityCache(context.Background(), redisConfig(t, mr))
	require.NoError(t, err)
	assert.Same(t, c, GetAuthorityCache())
	assert.NoError(t, CloseAuthorityCache())
}

func TestInitializeAuthorityCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfig(t, mr)
	mr.Close()

	c, err := InitializeAuthorityCache(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "连接Redis失败")
}
