package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	apperrors "iamcore/pkg/errors"

	"github.com/go-redis/redis/v8"
)

// AuthorityCache 会话角色缓存：用户ID -> 当前被授予的角色编码集合
//
// 集合总是整体替换，不做合并。
type AuthorityCache struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
	Timeout  time.Duration
}

// NewAuthorityCache 创建角色缓存实例
func NewAuthorityCache(config *Config) *AuthorityCache {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
	})
	return NewAuthorityCacheWithClient(client, config.Prefix, config.Timeout)
}

// NewAuthorityCacheWithClient 使用已有客户端创建
func NewAuthorityCacheWithClient(client *redis.Client, prefix string, timeout time.Duration) *AuthorityCache {
	if prefix == "" {
		prefix = "auth:token:"
	}
	return &AuthorityCache{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
	}
}

// Close 关闭Redis连接
func (c *AuthorityCache) Close() error {
	return c.client.Close()
}

// Ping 测试Redis连接
func (c *AuthorityCache) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return apperrors.Transient("连接Redis失败", err)
	}
	return nil
}

// Refresh 整体替换用户的角色集合并重置TTL
//
// roles 为空时不会创建键，已有的旧键会被删除，避免已撤销的角色继续生效。
func (c *AuthorityCache) Refresh(ctx context.Context, userID string, roles []string, ttl time.Duration) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	key := c.key(userID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(roles) > 0 {
			pipe.SAdd(ctx, key, members(roles)...)
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return apperrors.Transient("刷新角色缓存失败", err)
	}
	return nil
}

// Replace 替换已存在条目的角色集合并保留剩余TTL，条目不存在时什么也不做
func (c *AuthorityCache) Replace(ctx context.Context, userID string, roles []string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	key := c.key(userID)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return nil
		}
		ttl, err := tx.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(roles) > 0 {
				pipe.SAdd(ctx, key, members(roles)...)
				if ttl > 0 {
					pipe.PExpire(ctx, key, ttl)
				}
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// 并发登录已经写入了更新的集合，以最后写入者为准
		return nil
	}
	if err != nil {
		return apperrors.Transient("替换角色缓存失败", err)
	}
	return nil
}

// Invalidate 删除用户的角色缓存
func (c *AuthorityCache) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, c.key(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return apperrors.Transient("删除角色缓存失败", err)
	}
	return nil
}

// Read 读取用户的角色集合，未命中返回空集合
func (c *AuthorityCache) Read(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	roles, err := c.client.SMembers(ctx, c.key(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperrors.Transient("读取角色缓存失败", err)
	}
	sort.Strings(roles)
	return roles, nil
}

// TTL 条目剩余有效期，不存在时返回0
func (c *AuthorityCache) TTL(ctx context.Context, userID string) (time.Duration, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	ttl, err := c.client.PTTL(ctx, c.key(userID)).Result()
	if err != nil {
		return 0, apperrors.Transient("读取缓存TTL失败", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// 辅助方法

// key 获取缓存键名
func (c *AuthorityCache) key(userID string) string {
	return c.prefix + userID
}

func (c *AuthorityCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func members(roles []string) []interface{} {
	out := make([]interface{}, 0, len(roles))
	for _, r := range roles {
		out = append(out, r)
	}
	return out
}
