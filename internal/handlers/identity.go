package handlers

import (
	"strconv"

	"iamcore/internal/services"
	"iamcore/pkg/response"

	"github.com/gin-gonic/gin"
)

// ========== 领域 ==========

type DomainHandler struct {
	service *services.DomainService
	cascade *services.CascadeService
}

func NewDomainHandler(service *services.DomainService, cascade *services.CascadeService) *DomainHandler {
	return &DomainHandler{service: service, cascade: cascade}
}

// Create 创建领域
func (h *DomainHandler) Create(c *gin.Context) {
	var req services.DomainInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	domain, err := h.service.Create(c.Request.Context(), req, operator(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, domain)
}

// Update 更新领域
func (h *DomainHandler) Update(c *gin.Context) {
	var req services.DomainInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	domain, err := h.service.Update(c.Request.Context(), req, operator(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, domain)
}

// Delete 删除领域
func (h *DomainHandler) Delete(c *gin.Context) {
	if err := h.cascade.DeleteDomain(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// ========== 角色 ==========

type RoleHandler struct {
	service *services.RoleService
	cascade *services.CascadeService
}

func NewRoleHandler(service *services.RoleService, cascade *services.CascadeService) *RoleHandler {
	return &RoleHandler{service: service, cascade: cascade}
}

// Create 创建角色
func (h *RoleHandler) Create(c *gin.Context) {
	var req services.RoleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	role, err := h.service.Create(c.Request.Context(), req, operator(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, role)
}

// Update 更新角色
func (h *RoleHandler) Update(c *gin.Context) {
	var req services.RoleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	role, err := h.service.Update(c.Request.Context(), req, operator(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, role)
}

// Delete 删除角色
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.cascade.DeleteRole(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// ========== 用户 ==========

type UserHandler struct {
	service *services.UserService
	cascade *services.CascadeService
}

func NewUserHandler(service *services.UserService, cascade *services.CascadeService) *UserHandler {
	return &UserHandler{service: service, cascade: cascade}
}

// Create 创建用户
func (h *UserHandler) Create(c *gin.Context) {
	var req services.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	user, err := h.service.Create(c.Request.Context(), req, operator(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}

// Update 更新用户
func (h *UserHandler) Update(c *gin.Context) {
	var req services.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	user, err := h.service.Update(c.Request.Context(), req, operator(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}

// Delete 删除用户
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.cascade.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// ========== 菜单 ==========

type MenuHandler struct {
	service *services.MenuService
	cascade *services.CascadeService
}

func NewMenuHandler(service *services.MenuService, cascade *services.CascadeService) *MenuHandler {
	return &MenuHandler{service: service, cascade: cascade}
}

// Create 创建菜单
func (h *MenuHandler) Create(c *gin.Context) {
	var req services.MenuInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	menu, err := h.service.Create(c.Request.Context(), req, operator(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, menu)
}

// Update 更新菜单
func (h *MenuHandler) Update(c *gin.Context) {
	var req services.MenuInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	menu, err := h.service.Update(c.Request.Context(), req, operator(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, menu)
}

// Delete 删除菜单
func (h *MenuHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}
	if err := h.cascade.DeleteMenu(c.Request.Context(), uint(id)); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}
