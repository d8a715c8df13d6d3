package services

import (
	"context"
	"time"

	apperrors "iamcore/pkg/errors"
	"iamcore/pkg/jwt"

	"github.com/sirupsen/logrus"
)

// LoginInput 登录参数，identifier 可以是用户名、邮箱或手机号
type LoginInput struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResult 登录结果
type LoginResult struct {
	*jwt.TokenPair
	Roles []string `json:"roles"`
}

// AuthService 登录、登出与刷新令牌，负责建立会话角色缓存
type AuthService struct {
	Deps
	tokens *jwt.JWTManager
}

func NewAuthService(deps Deps, tokens *jwt.JWTManager) *AuthService {
	return &AuthService{Deps: deps, tokens: tokens}
}

// Login 登录
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.Repo.FindUserByIdentifier(dbCtx, in.Identifier)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, apperrors.Invalid("用户名或密码错误")
		}
		return nil, err
	}
	if !user.IsEnabled() {
		return nil, apperrors.Invalid("用户已被禁用")
	}
	if !user.CheckPassword(in.Password) {
		return nil, apperrors.Invalid("用户名或密码错误")
	}

	return s.issue(ctx, user.ID, user.Username, user.Domain)
}

// Refresh 用刷新令牌换取新的令牌对，同时重建缓存
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Invalid("刷新令牌无效")
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	user, err := s.Repo.FindUserByID(dbCtx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsEnabled() {
		return nil, apperrors.Invalid("用户已被禁用")
	}
	return s.issue(ctx, user.ID, user.Username, user.Domain)
}

// Logout 登出，删除会话角色缓存
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.Cache.Invalidate(ctx, userID)
}

// TokenTTL 访问令牌有效期，也是缓存的TTL
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.GetTokenDuration()
}

func (s *AuthService) issue(ctx context.Context, userID, username, domain string) (*LoginResult, error) {
	pair, err := s.tokens.GenerateTokenPair(userID, username, domain)
	if err != nil {
		return nil, err
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	roles, err := s.Repo.RoleCodesByUser(dbCtx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Refresh(ctx, userID, roles, s.tokens.GetTokenDuration()); err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"user":   username,
		"domain": domain,
		"roles":  len(roles),
	}).Info("用户登录成功")
	return &LoginResult{TokenPair: pair, Roles: roles}, nil
}
