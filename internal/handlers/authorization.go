package handlers

import (
	"iamcore/internal/services"
	"iamcore/pkg/response"

	"github.com/gin-gonic/gin"
)

type AssignPermissionRequest struct {
	Domain      string   `json:"domain" binding:"required"`
	RoleID      string   `json:"roleId" binding:"required"`
	Permissions []string `json:"permissions"`
}

type AssignRoutesRequest struct {
	Domain   string `json:"domain" binding:"required"`
	RoleID   string `json:"roleId" binding:"required"`
	RouteIDs []uint `json:"routeIds"`
}

type AssignUsersRequest struct {
	RoleID  string   `json:"roleId" binding:"required"`
	UserIDs []string `json:"userIds" binding:"required,min=1"`
}

// AuthorizationHandler 授权关系维护
type AuthorizationHandler struct {
	service *services.AuthorizationService
	sweeper *services.PolicySweeper
}

func NewAuthorizationHandler(service *services.AuthorizationService, sweeper *services.PolicySweeper) *AuthorizationHandler {
	return &AuthorizationHandler{service: service, sweeper: sweeper}
}

// AssignPermission 为角色分配接口权限
func (h *AuthorizationHandler) AssignPermission(c *gin.Context) {
	var req AssignPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.service.SyncPermissions(c.Request.Context(), req.Domain, req.RoleID, req.Permissions)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// AssignRoutes 为角色分配菜单
func (h *AuthorizationHandler) AssignRoutes(c *gin.Context) {
	var req AssignRoutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.service.SyncRoutes(c.Request.Context(), req.Domain, req.RoleID, req.RouteIDs)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// AssignUsers 为角色分配用户
func (h *AuthorizationHandler) AssignUsers(c *gin.Context) {
	var req AssignUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.service.SyncUsers(c.Request.Context(), req.RoleID, req.UserIDs)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// Reconcile 立即执行一次策略对账
func (h *AuthorizationHandler) Reconcile(c *gin.Context) {
	result, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// RoleRoutes 查询角色在领域下已分配的菜单ID
func (h *AuthorizationHandler) RoleRoutes(c *gin.Context) {
	ids, err := h.service.RoleRouteIDs(c.Request.Context(), c.Query("domain"), c.Query("roleId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, ids)
}

// RolePermissions 查询角色在领域下已分配的接口ID
func (h *AuthorizationHandler) RolePermissions(c *gin.Context) {
	ids, err := h.service.RolePermissionIDs(c.Request.Context(), c.Query("domain"), c.Query("roleId"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, ids)
}

// RolePolicies 查询角色在领域下生效的策略
func (h *AuthorizationHandler) RolePolicies(c *gin.Context) {
	tuples, err := h.service.RolePolicies(c.Request.Context(), c.Query("domain"), c.Query("roleCode"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, tuples)
}
