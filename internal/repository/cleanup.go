package repository

import (
	"context"

	"iamcore/internal/models"
	apperrors "iamcore/pkg/errors"
)

// 级联删除与孤儿清理。删除身份行时行不存在返回 NotFound，依赖清理幂等。

// DeleteDomainRow 删除领域行
func (r *RelationRepository) DeleteDomainRow(ctx context.Context, id string) error {
	return r.deleteIdentity(ctx, &models.Domain{}, "id = ?", id, "领域 %s 不存在")
}

// DeleteRoleRow 删除角色行
func (r *RelationRepository) DeleteRoleRow(ctx context.Context, id string) error {
	return r.deleteIdentity(ctx, &models.Role{}, "id = ?", id, "角色 %s 不存在")
}

// DeleteUserRow 删除用户行
func (r *RelationRepository) DeleteUserRow(ctx context.Context, id string) error {
	return r.deleteIdentity(ctx, &models.User{}, "id = ?", id, "用户 %s 不存在")
}

// DeleteMenuRow 删除菜单行
func (r *RelationRepository) DeleteMenuRow(ctx context.Context, id uint) error {
	return r.deleteIdentity(ctx, &models.Menu{}, "id = ?", id, "菜单 %v 不存在")
}

func (r *RelationRepository) deleteIdentity(ctx context.Context, model interface{}, query string, id interface{}, notFound string) error {
	result := r.conn(ctx).Where(query, id).Delete(model)
	if result.Error != nil {
		return apperrors.Classify("删除失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound(notFound, id)
	}
	return nil
}

// DeleteUsers 批量删除用户
func (r *RelationRepository) DeleteUsers(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.conn(ctx).Where("id IN ?", ids).Delete(&models.User{})
	return result.RowsAffected, apperrors.Classify("删除用户失败", result.Error)
}

// UserIDsByDomain 所属领域为 code 的用户
func (r *RelationRepository) UserIDsByDomain(ctx context.Context, code string) ([]string, error) {
	var ids []string
	err := r.conn(ctx).Model(&models.User{}).Where("domain = ?", code).Pluck("id", &ids).Error
	return ids, apperrors.Classify("查询领域用户失败", err)
}

// DeleteRoleMenusBy 按单列删除角色菜单，column 只能是 role_id/menu_id/domain
func (r *RelationRepository) DeleteRoleMenusBy(ctx context.Context, column string, value interface{}) (int64, error) {
	result := r.conn(ctx).Where(column+" = ?", value).Delete(&models.RoleMenu{})
	return result.RowsAffected, apperrors.Classify("删除角色菜单失败", result.Error)
}

// DeleteRolePermissionsBy 按单列删除角色权限，column 只能是 role_id/endpoint_id/domain
func (r *RelationRepository) DeleteRolePermissionsBy(ctx context.Context, column string, value interface{}) (int64, error) {
	result := r.conn(ctx).Where(column+" = ?", value).Delete(&models.RolePermission{})
	return result.RowsAffected, apperrors.Classify("删除角色权限失败", result.Error)
}

// DeleteUserRolesByRole 删除角色的全部成员关系
func (r *RelationRepository) DeleteUserRolesByRole(ctx context.Context, roleID string) (int64, error) {
	result := r.conn(ctx).Where("role_id = ?", roleID).Delete(&models.UserRole{})
	return result.RowsAffected, apperrors.Classify("删除用户角色失败", result.Error)
}

// DeleteUserRolesByUsers 删除用户的全部角色
func (r *RelationRepository) DeleteUserRolesByUsers(ctx context.Context, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	result := r.conn(ctx).Where("user_id IN ?", userIDs).Delete(&models.UserRole{})
	return result.RowsAffected, apperrors.Classify("删除用户角色失败", result.Error)
}

// DomainReferenced 领域编码是否被角色菜单或角色权限引用
func (r *RelationRepository) DomainReferenced(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.conn(ctx).Model(&models.RoleMenu{}).Where("domain = ?", code).Count(&count).Error; err != nil {
		return false, apperrors.Classify("查询领域引用失败", err)
	}
	if count > 0 {
		return true, nil
	}
	if err := r.conn(ctx).Model(&models.RolePermission{}).Where("domain = ?", code).Count(&count).Error; err != nil {
		return false, apperrors.Classify("查询领域引用失败", err)
	}
	return count > 0, nil
}

// OrphanCounts 孤儿行清理数量
type OrphanCounts struct {
	RoleMenus       int64
	UserRoles       int64
	RolePermissions int64
}

// Total 合计
func (o OrphanCounts) Total() int64 {
	return o.RoleMenus + o.UserRoles + o.RolePermissions
}

// DeleteOrphans 删除父身份已不存在的关联行
func (r *RelationRepository) DeleteOrphans(ctx context.Context) (OrphanCounts, error) {
	var counts OrphanCounts
	db := r.conn(ctx)

	result := db.Where("role_id NOT IN (?) OR menu_id NOT IN (?) OR domain NOT IN (?)",
		db.Model(&models.Role{}).Select("id"),
		db.Model(&models.Menu{}).Select("id"),
		db.Model(&models.Domain{}).Select("code"),
	).Delete(&models.RoleMenu{})
	if result.Error != nil {
		return counts, apperrors.Classify("清理角色菜单失败", result.Error)
	}
	counts.RoleMenus = result.RowsAffected

	result = db.Where("user_id NOT IN (?) OR role_id NOT IN (?)",
		db.Model(&models.User{}).Select("id"),
		db.Model(&models.Role{}).Select("id"),
	).Delete(&models.UserRole{})
	if result.Error != nil {
		return counts, apperrors.Classify("清理用户角色失败", result.Error)
	}
	counts.UserRoles = result.RowsAffected

	result = db.Where("role_id NOT IN (?) OR endpoint_id NOT IN (?) OR domain NOT IN (?)",
		db.Model(&models.Role{}).Select("id"),
		db.Model(&models.Endpoint{}).Select("id"),
		db.Model(&models.Domain{}).Select("code"),
	).Delete(&models.RolePermission{})
	if result.Error != nil {
		return counts, apperrors.Classify("清理角色权限失败", result.Error)
	}
	counts.RolePermissions = result.RowsAffected

	return counts, nil
}
