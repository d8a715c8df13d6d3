package database

import (
	"context"
	"errors"
	"fmt"

	"iamcore/pkg/cache"
	"iamcore/pkg/config"
)

var authorityCacheInstance *cache.AuthorityCache

// InitializeAuthorityCache 连接Redis并校验可用
func InitializeAuthorityCache(ctx context.Context, cfg *config.Config) (*cache.AuthorityCache, error) {
	c := cache.NewAuthorityCache(&cache.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
		Timeout:  cfg.Authz.StoreTimeout,
	})
	if err := c.Ping(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("连接Redis失败: %w", err), c.Close())
	}
	authorityCacheInstance = c
	return c, nil
}

// GetAuthorityCache 获取会话角色缓存
func GetAuthorityCache() *cache.AuthorityCache {
	return authorityCacheInstance
}

// CloseAuthorityCache 关闭Redis连接
func CloseAuthorityCache() error {
	if authorityCacheInstance != nil {
		return authorityCacheInstance.Close()
	}
	return nil
}
