// Package repository 提供三类关联关系及其身份表的显式查询方法。
//
// 所有方法返回具体类型的集合，差集计算交给调用方。
package repository

import (
	"context"

	"iamcore/internal/models"
	apperrors "iamcore/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RelationRepository 关系仓储
type RelationRepository struct {
	db *gorm.DB
}

func NewRelationRepository(db *gorm.DB) *RelationRepository {
	return &RelationRepository{db: db}
}

// DB 底层连接
func (r *RelationRepository) DB() *gorm.DB {
	return r.db
}

// Transaction 在一个事务中执行，fn 中只能使用传入的仓储
func (r *RelationRepository) Transaction(ctx context.Context, fn func(tx *RelationRepository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RelationRepository{db: tx})
	})
	return apperrors.Classify("事务执行失败", err)
}

func (r *RelationRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// ========== 身份表 ==========

// FindDomainByCode 根据编码获取领域
func (r *RelationRepository) FindDomainByCode(ctx context.Context, code string) (*models.Domain, error) {
	var domain models.Domain
	err := r.conn(ctx).Where("code = ?", code).First(&domain).Error
	if err != nil {
		return nil, notFoundOr(err, "领域 %s 不存在", code)
	}
	return &domain, nil
}

// FindDomainByID 根据ID获取领域
func (r *RelationRepository) FindDomainByID(ctx context.Context, id string) (*models.Domain, error) {
	var domain models.Domain
	err := r.conn(ctx).Where("id = ?", id).First(&domain).Error
	if err != nil {
		return nil, notFoundOr(err, "领域 %s 不存在", id)
	}
	return &domain, nil
}

// FindRoleByID 根据ID获取角色
func (r *RelationRepository) FindRoleByID(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	err := r.conn(ctx).Where("id = ?", id).First(&role).Error
	if err != nil {
		return nil, notFoundOr(err, "角色 %s 不存在", id)
	}
	return &role, nil
}

// LockRole 在事务内获取角色并加行锁，同一角色的变更串行执行
func (r *RelationRepository) LockRole(ctx context.Context, id string) (*models.Role, error) {
	q := r.locking(ctx, clause.LockingStrengthUpdate)
	var role models.Role
	if err := q.Where("id = ?", id).First(&role).Error; err != nil {
		return nil, notFoundOr(err, "角色 %s 不存在", id)
	}
	return &role, nil
}

// ShareDomain 在事务内获取领域并加共享锁，删除领域的事务需等待本事务提交
func (r *RelationRepository) ShareDomain(ctx context.Context, code string) (*models.Domain, error) {
	var domain models.Domain
	err := r.locking(ctx, clause.LockingStrengthShare).Where("code = ?", code).First(&domain).Error
	if err != nil {
		return nil, notFoundOr(err, "领域 %s 不存在", code)
	}
	return &domain, nil
}

// ShareUsers 在事务内获取用户并加共享锁，已被并发删除的用户不会返回
func (r *RelationRepository) ShareUsers(ctx context.Context, ids []string) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.locking(ctx, clause.LockingStrengthShare).Where("id IN ?", ids).Find(&users).Error
	return users, apperrors.Classify("查询用户失败", err)
}

// locking sqlite 没有行级锁，只在 postgres 上加锁
func (r *RelationRepository) locking(ctx context.Context, strength string) *gorm.DB {
	q := r.conn(ctx)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: strength})
	}
	return q
}

// FindRoleByCode 根据编码获取角色
func (r *RelationRepository) FindRoleByCode(ctx context.Context, code string) (*models.Role, error) {
	var role models.Role
	err := r.conn(ctx).Where("code = ?", code).First(&role).Error
	if err != nil {
		return nil, notFoundOr(err, "角色 %s 不存在", code)
	}
	return &role, nil
}

// FindUserByID 根据ID获取用户
func (r *RelationRepository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.conn(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, notFoundOr(err, "用户 %s 不存在", id)
	}
	return &user, nil
}

// FindMenuByID 根据ID获取菜单
func (r *RelationRepository) FindMenuByID(ctx context.Context, id uint) (*models.Menu, error) {
	var menu models.Menu
	err := r.conn(ctx).Where("id = ?", id).First(&menu).Error
	if err != nil {
		return nil, notFoundOr(err, "菜单 %d 不存在", id)
	}
	return &menu, nil
}

// FindMenusByIDs 批量获取菜单
func (r *RelationRepository) FindMenusByIDs(ctx context.Context, ids []uint) ([]models.Menu, error) {
	var menus []models.Menu
	if len(ids) == 0 {
		return menus, nil
	}
	err := r.conn(ctx).Where("id IN ?", ids).Find(&menus).Error
	return menus, apperrors.Classify("查询菜单失败", err)
}

// CountMenuChildren 统计子菜单数量
func (r *RelationRepository) CountMenuChildren(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&models.Menu{}).Where("pid = ?", id).Count(&count).Error
	return count, apperrors.Classify("统计子菜单失败", err)
}

// FindEndpointsByIDs 批量获取接口
func (r *RelationRepository) FindEndpointsByIDs(ctx context.Context, ids []string) ([]models.Endpoint, error) {
	var endpoints []models.Endpoint
	if len(ids) == 0 {
		return endpoints, nil
	}
	err := r.conn(ctx).Where("id IN ?", ids).Find(&endpoints).Error
	return endpoints, apperrors.Classify("查询接口失败", err)
}

// ========== 角色-菜单 ==========

// MenuIDsByRoleAndDomain 角色在领域下已授予的菜单
func (r *RelationRepository) MenuIDsByRoleAndDomain(ctx context.Context, roleID, domain string) ([]uint, error) {
	var ids []uint
	err := r.conn(ctx).Model(&models.RoleMenu{}).
		Where("role_id = ? AND domain = ?", roleID, domain).
		Pluck("menu_id", &ids).Error
	return ids, apperrors.Classify("查询角色菜单失败", err)
}

// InsertRoleMenus 新增角色菜单
func (r *RelationRepository) InsertRoleMenus(ctx context.Context, roleID, domain string, menuIDs []uint) error {
	if len(menuIDs) == 0 {
		return nil
	}
	rows := make([]models.RoleMenu, 0, len(menuIDs))
	for _, id := range menuIDs {
		rows = append(rows, models.RoleMenu{RoleID: roleID, MenuID: id, Domain: domain})
	}
	return apperrors.Classify("新增角色菜单失败", r.conn(ctx).Create(&rows).Error)
}

// DeleteRoleMenus 删除角色在领域下的指定菜单
func (r *RelationRepository) DeleteRoleMenus(ctx context.Context, roleID, domain string, menuIDs []uint) error {
	if len(menuIDs) == 0 {
		return nil
	}
	err := r.conn(ctx).
		Where("role_id = ? AND domain = ? AND menu_id IN ?", roleID, domain, menuIDs).
		Delete(&models.RoleMenu{}).Error
	return apperrors.Classify("删除角色菜单失败", err)
}

// ========== 用户-角色 ==========

// UserIDsByRole 角色下的用户
func (r *RelationRepository) UserIDsByRole(ctx context.Context, roleID string) ([]string, error) {
	var ids []string
	err := r.conn(ctx).Model(&models.UserRole{}).Where("role_id = ?", roleID).Pluck("user_id", &ids).Error
	return ids, apperrors.Classify("查询角色用户失败", err)
}

// InsertUserRoles 为角色新增用户
func (r *RelationRepository) InsertUserRoles(ctx context.Context, roleID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.UserRole, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, models.UserRole{UserID: id, RoleID: roleID})
	}
	return apperrors.Classify("新增用户角色失败", r.conn(ctx).Create(&rows).Error)
}

// DeleteUserRoles 从角色中移除用户
func (r *RelationRepository) DeleteUserRoles(ctx context.Context, roleID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	err := r.conn(ctx).Where("role_id = ? AND user_id IN ?", roleID, userIDs).Delete(&models.UserRole{}).Error
	return apperrors.Classify("删除用户角色失败", err)
}

// RoleCodesByUser 用户当前被授予的角色编码
func (r *RelationRepository) RoleCodesByUser(ctx context.Context, userID string) ([]string, error) {
	var codes []string
	err := r.conn(ctx).Model(&models.Role{}).
		Joins("JOIN sys_user_role ON sys_user_role.role_id = sys_role.id").
		Where("sys_user_role.user_id = ?", userID).
		Order("sys_role.code").
		Pluck("sys_role.code", &codes).Error
	return codes, apperrors.Classify("查询用户角色失败", err)
}

// ========== 角色-权限 ==========

// EndpointIDsByRoleAndDomain 角色在领域下已授予的接口
func (r *RelationRepository) EndpointIDsByRoleAndDomain(ctx context.Context, roleID, domain string) ([]string, error) {
	var ids []string
	err := r.conn(ctx).Model(&models.RolePermission{}).
		Where("role_id = ? AND domain = ?", roleID, domain).
		Pluck("endpoint_id", &ids).Error
	return ids, apperrors.Classify("查询角色权限失败", err)
}

// InsertRolePermissions 新增角色权限
func (r *RelationRepository) InsertRolePermissions(ctx context.Context, roleID, domain string, endpointIDs []string) error {
	if len(endpointIDs) == 0 {
		return nil
	}
	rows := make([]models.RolePermission, 0, len(endpointIDs))
	for _, id := range endpointIDs {
		rows = append(rows, models.RolePermission{RoleID: roleID, EndpointID: id, Domain: domain})
	}
	return apperrors.Classify("新增角色权限失败", r.conn(ctx).Create(&rows).Error)
}

// DeleteRolePermissions 删除角色在领域下的指定权限
func (r *RelationRepository) DeleteRolePermissions(ctx context.Context, roleID, domain string, endpointIDs []string) error {
	if len(endpointIDs) == 0 {
		return nil
	}
	err := r.conn(ctx).
		Where("role_id = ? AND domain = ? AND endpoint_id IN ?", roleID, domain, endpointIDs).
		Delete(&models.RolePermission{}).Error
	return apperrors.Classify("删除角色权限失败", err)
}

// Grant 关系库中的一条权限授予，已展开为策略字段
type Grant struct {
	RoleCode string
	Resource string
	Action   string
	Domain   string
}

// PermissionGrants 所有有效的权限授予，角色/接口/领域任一缺失的行不会出现
func (r *RelationRepository) PermissionGrants(ctx context.Context) ([]Grant, error) {
	var grants []Grant
	err := r.grants(ctx).Joins("JOIN sys_domain ON sys_domain.code = rp.domain").Scan(&grants).Error
	return grants, apperrors.Classify("查询权限授予失败", err)
}

// PermissionGrantsFor 角色在领域下的有效权限授予
func (r *RelationRepository) PermissionGrantsFor(ctx context.Context, roleID, domain string) ([]Grant, error) {
	var grants []Grant
	err := r.grants(ctx).Where("rp.role_id = ? AND rp.domain = ?", roleID, domain).Scan(&grants).Error
	return grants, apperrors.Classify("查询权限授予失败", err)
}

// PermissionGrantsByRole 角色在所有领域下的有效权限授予
func (r *RelationRepository) PermissionGrantsByRole(ctx context.Context, roleID string) ([]Grant, error) {
	var grants []Grant
	err := r.grants(ctx).
		Joins("JOIN sys_domain ON sys_domain.code = rp.domain").
		Where("rp.role_id = ?", roleID).
		Scan(&grants).Error
	return grants, apperrors.Classify("查询权限授予失败", err)
}

func (r *RelationRepository) grants(ctx context.Context) *gorm.DB {
	return r.conn(ctx).Table("sys_role_permission AS rp").
		Select("sys_role.code AS role_code, sys_endpoint.resource AS resource, sys_endpoint.action AS action, rp.domain AS domain").
		Joins("JOIN sys_role ON sys_role.id = rp.role_id").
		Joins("JOIN sys_endpoint ON sys_endpoint.id = rp.endpoint_id")
}

func notFoundOr(err error, format string, args ...interface{}) error {
	if err == gorm.ErrRecordNotFound {
		return apperrors.NotFound(format, args...)
	}
	return apperrors.Classify("查询失败", err)
}
