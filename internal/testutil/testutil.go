// Package testutil 提供测试用的内存数据库、Redis与策略存储。
package testutil

import (
	"testing"
	"time"

	"iamcore/internal/database"
	"iamcore/internal/policy"
	"iamcore/pkg/cache"
	"iamcore/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB 创建已迁移的内存sqlite
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open("file::memory:"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db, logger.Discard()))
	return db
}

// NewCache 创建基于miniredis的角色缓存
func NewCache(t *testing.T) (*cache.AuthorityCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewAuthorityCacheWithClient(client, "auth:token:", time.Second)
	t.Cleanup(func() {
		c.Close()
		mr.Close()
	})
	return c, mr
}

// NewPolicyStore 创建落在同一个数据库上的策略存储
func NewPolicyStore(t *testing.T, db *gorm.DB) *policy.CasbinStore {
	t.Helper()

	s, err := policy.NewCasbinStore(db, time.Second)
	require.NoError(t, err)
	return s
}
