package services

import (
	"iamcore/pkg/jwt"
)

// Set 服务全集，由 cmd/server 装配后交给路由
type Set struct {
	Auth          *AuthService
	Authorization *AuthorizationService
	Cascade       *CascadeService
	Domain        *DomainService
	Role          *RoleService
	User          *UserService
	Menu          *MenuService
	Endpoint      *EndpointService
	Sweeper       *PolicySweeper
}

// NewSet 用同一组依赖创建全部服务，对账器同时作为分歧标记器
func NewSet(deps Deps, tokens *jwt.JWTManager, defaultRoleCode string) *Set {
	sweeper := NewPolicySweeper(deps)
	deps.Divergence = sweeper

	return &Set{
		Auth:          NewAuthService(deps, tokens),
		Authorization: NewAuthorizationService(deps),
		Cascade:       NewCascadeService(deps),
		Domain:        NewDomainService(deps),
		Role:          NewRoleService(deps),
		User:          NewUserService(deps, defaultRoleCode),
		Menu:          NewMenuService(deps),
		Endpoint:      NewEndpointService(deps),
		Sweeper:       sweeper,
	}
}
