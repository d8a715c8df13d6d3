package repository

import (
	"context"

	"iamcore/internal/models"
	apperrors "iamcore/pkg/errors"
	"iamcore/pkg/pagination"
)

// Create 新增身份行，唯一键冲突返回 Conflict
func (r *RelationRepository) Create(ctx context.Context, value interface{}) error {
	return apperrors.Classify("新增失败", r.conn(ctx).Create(value).Error)
}

// Save 保存身份行
func (r *RelationRepository) Save(ctx context.Context, value interface{}) error {
	return apperrors.Classify("保存失败", r.conn(ctx).Save(value).Error)
}

// Exists 判断满足条件的行是否存在，excludeID 非空时排除该行
func (r *RelationRepository) Exists(ctx context.Context, model interface{}, column string, value interface{}, excludeID interface{}) (bool, error) {
	q := r.conn(ctx).Model(model).Where(column+" = ?", value)
	if excludeID != nil {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, apperrors.Classify("查询失败", err)
	}
	return count > 0, nil
}

// FindUserByUsername 根据用户名获取用户
func (r *RelationRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.conn(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, notFoundOr(err, "用户 %s 不存在", username)
	}
	return &user, nil
}

// FindUserByIdentifier 按用户名、邮箱或手机号获取用户
func (r *RelationRepository) FindUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	err := r.conn(ctx).
		Where("username = ? OR email = ? OR phone_number = ?", identifier, identifier, identifier).
		First(&user).Error
	if err != nil {
		return nil, notFoundOr(err, "用户 %s 不存在", identifier)
	}
	return &user, nil
}

// UserCountByDomain 所属领域为 code 的用户数
func (r *RelationRepository) UserCountByDomain(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&models.User{}).Where("domain = ?", code).Count(&count).Error
	return count, apperrors.Classify("统计领域用户失败", err)
}

// ========== 接口目录 ==========

// AllEndpoints 全部接口
func (r *RelationRepository) AllEndpoints(ctx context.Context) ([]models.Endpoint, error) {
	var endpoints []models.Endpoint
	err := r.conn(ctx).Order("resource, action").Find(&endpoints).Error
	return endpoints, apperrors.Classify("查询接口失败", err)
}

// AllEndpointIDs 全部接口ID
func (r *RelationRepository) AllEndpointIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.conn(ctx).Model(&models.Endpoint{}).Pluck("id", &ids).Error
	return ids, apperrors.Classify("查询接口失败", err)
}

// DeleteEndpoints 删除接口
func (r *RelationRepository) DeleteEndpoints(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.conn(ctx).Where("id IN ?", ids).Delete(&models.Endpoint{}).Error
	return apperrors.Classify("删除接口失败", err)
}

// DeleteRolePermissionsByEndpoints 删除引用指定接口的权限
func (r *RelationRepository) DeleteRolePermissionsByEndpoints(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.conn(ctx).Where("endpoint_id IN ?", ids).Delete(&models.RolePermission{})
	return result.RowsAffected, apperrors.Classify("删除角色权限失败", result.Error)
}

// EndpointFilter 接口分页查询条件
type EndpointFilter struct {
	Resource   string
	Method     string
	Controller string
}

// PageEndpoints 分页查询接口
func (r *RelationRepository) PageEndpoints(ctx context.Context, filter EndpointFilter, params *pagination.PageParams) ([]models.Endpoint, int64, error) {
	q := r.conn(ctx).Model(&models.Endpoint{})
	if filter.Resource != "" {
		q = q.Where("resource LIKE ?", "%"+filter.Resource+"%")
	}
	if filter.Method != "" {
		q = q.Where("method = ?", filter.Method)
	}
	if filter.Controller != "" {
		q = q.Where("controller = ?", filter.Controller)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Classify("统计接口失败", err)
	}

	var endpoints []models.Endpoint
	err := q.Order("resource, action").Offset(params.Offset()).Limit(params.Limit()).Find(&endpoints).Error
	return endpoints, total, apperrors.Classify("查询接口失败", err)
}
