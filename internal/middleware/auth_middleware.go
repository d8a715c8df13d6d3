package middleware

import (
	"context"
	"strings"

	"iamcore/pkg/jwt"
	"iamcore/pkg/response"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextDomain   = "domain"
	ContextClaims   = "claims"
	ContextRoles    = "roles"
)

// RoleReader 读取会话角色缓存
type RoleReader interface {
	Read(ctx context.Context, userID string) ([]string, error)
}

// Enforcer 判断角色在领域下的访问权限
type Enforcer interface {
	Enforce(ctx context.Context, role, resource, action, domain string) (bool, error)
}

// AuthMiddleware 权限中间件
type AuthMiddleware struct {
	jwtManager *jwt.JWTManager
	roles      RoleReader
	enforcer   Enforcer
}

func NewAuthMiddleware(jwtManager *jwt.JWTManager, roles RoleReader, enforcer Enforcer) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		roles:      roles,
		enforcer:   enforcer,
	}
}

// RequireLogin 校验访问令牌
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		claims, err := m.jwtManager.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextDomain, claims.Domain)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequirePermission 按会话角色缓存判断当前用户在其领域下能否访问资源
func (m *AuthMiddleware) RequirePermission(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		if userID == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		roles, err := m.roles.Read(ctx, userID)
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}
		if len(roles) == 0 {
			response.Forbidden(c, "无权限访问")
			c.Abort()
			return
		}

		domain := c.GetString(ContextDomain)
		for _, role := range roles {
			ok, err := m.enforcer.Enforce(ctx, role, resource, action, domain)
			if err != nil {
				response.FromError(c, err)
				c.Abort()
				return
			}
			if ok {
				c.Set(ContextRoles, roles)
				c.Next()
				return
			}
		}

		response.Forbidden(c, "无权限访问")
		c.Abort()
	}
}
