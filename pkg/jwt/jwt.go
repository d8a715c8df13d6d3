package jwt

import (
	"errors"
	"sync"
	"time"

	"iamcore/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

// 令牌类型
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JWTClaims JWT声明
type JWTClaims struct {
	UserID    string `json:"uid"`
	Username  string `json:"username"`
	Domain    string `json:"domain"` // 用户所属领域
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair 访问令牌与刷新令牌
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// JWTManager JWT管理器
type JWTManager struct {
	secretKey       string
	refreshKey      string
	tokenDuration   time.Duration
	refreshDuration time.Duration
	issuer          string
}

// NewJWTManager 创建JWT管理器
func NewJWTManager(cfg config.JWTConfig) *JWTManager {
	return &JWTManager{
		secretKey:       cfg.SecretKey,
		refreshKey:      cfg.RefreshSecretKey,
		tokenDuration:   cfg.TokenDuration,
		refreshDuration: cfg.RefreshDuration,
		issuer:          cfg.Issuer,
	}
}

// GenerateTokenPair 生成访问令牌和刷新令牌
func (manager *JWTManager) GenerateTokenPair(userID, username, domain string) (*TokenPair, error) {
	token, err := manager.sign(userID, username, domain, TokenTypeAccess, manager.tokenDuration, manager.secretKey)
	if err != nil {
		return nil, err
	}
	refresh, err := manager.sign(userID, username, domain, TokenTypeRefresh, manager.refreshDuration, manager.refreshKey)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Token: token, RefreshToken: refresh}, nil
}

func (manager *JWTManager) sign(userID, username, domain, tokenType string, ttl time.Duration, key string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:    userID,
		Username:  username,
		Domain:    domain,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    manager.issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(key))
}

// VerifyToken 验证访问令牌
func (manager *JWTManager) VerifyToken(tokenString string) (*JWTClaims, error) {
	return manager.verify(tokenString, manager.secretKey, TokenTypeAccess)
}

// VerifyRefreshToken 验证刷新令牌
func (manager *JWTManager) VerifyRefreshToken(tokenString string) (*JWTClaims, error) {
	return manager.verify(tokenString, manager.refreshKey, TokenTypeRefresh)
}

func (manager *JWTManager) verify(tokenString, key, tokenType string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&JWTClaims{},
		func(token *jwt.Token) (interface{}, error) {
			// 验证签名方法
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("意外的签名方法")
			}
			return []byte(key), nil
		},
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, errors.New("无法解析token声明")
	}
	if claims.TokenType != tokenType {
		return nil, errors.New("令牌类型不匹配")
	}
	return claims, nil
}

// GetTokenDuration 获取令牌有效期
func (manager *JWTManager) GetTokenDuration() time.Duration {
	return manager.tokenDuration
}

// 单例实现
var (
	defaultManager *JWTManager
	once           sync.Once
)

// GetJWTManager 获取全局JWT管理器实例
func GetJWTManager() *JWTManager {
	once.Do(func() {
		defaultManager = NewJWTManager(config.GetConfig().JWT)
	})
	return defaultManager
}
