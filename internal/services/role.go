package services

import (
	"context"
	"time"

	"iamcore/internal/models"
	"iamcore/internal/policy"
	"iamcore/internal/repository"
	apperrors "iamcore/pkg/errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RoleInput 创建/更新角色参数
type RoleInput struct {
	ID          string        `json:"id"`
	Code        string        `json:"code" binding:"required,max=50"`
	Name        string        `json:"name" binding:"required,max=100"`
	PID         string        `json:"pid" binding:"required,max=36"`
	Status      models.Status `json:"status" binding:"required,oneof=ENABLED DISABLED"`
	Description *string       `json:"description" binding:"omitempty,max=255"`
}

type RoleService struct {
	Deps
}

func NewRoleService(deps Deps) *RoleService {
	return &RoleService{Deps: deps}
}

// ========== 基础CRUD方法 ==========

// Create 创建角色
func (s *RoleService) Create(ctx context.Context, in RoleInput, operator string) (*models.Role, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// 检查角色代码是否重复
	exists, err := s.Repo.Exists(ctx, &models.Role{}, "code", in.Code, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Conflict("角色代码 %s 已存在", in.Code)
	}
	if in.PID != models.RootRolePID {
		if _, err := s.Repo.FindRoleByID(ctx, in.PID); err != nil {
			return nil, err
		}
	}

	role := &models.Role{
		BaseModel:   models.BaseModel{ID: uuid.NewString(), CreatedBy: operator},
		Code:        in.Code,
		Name:        in.Name,
		PID:         in.PID,
		Status:      in.Status,
		Description: in.Description,
	}
	if err := s.Repo.Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Update 更新角色；修改编码时策略与成员缓存随之迁移
func (s *RoleService) Update(ctx context.Context, in RoleInput, operator string) (*models.Role, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ID == "" {
		return nil, apperrors.Invalid("角色ID不能为空")
	}
	if in.PID == in.ID {
		return nil, apperrors.Conflict("角色不能以自身为父角色")
	}

	unlock := s.Locks.Lock(in.ID)
	defer unlock()

	var (
		role    *models.Role
		oldCode string
	)
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		var err error
		if role, err = tx.LockRole(txCtx, in.ID); err != nil {
			return err
		}
		exists, err := tx.Exists(txCtx, &models.Role{}, "code", in.Code, in.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.Conflict("角色代码 %s 已存在", in.Code)
		}
		if in.PID != models.RootRolePID {
			if _, err := tx.FindRoleByID(txCtx, in.PID); err != nil {
				return err
			}
		}

		now := time.Now()
		oldCode = role.Code
		role.Code = in.Code
		role.Name = in.Name
		role.PID = in.PID
		role.Status = in.Status
		role.Description = in.Description
		role.UpdatedAt = &now
		role.UpdatedBy = &operator
		return tx.Save(txCtx, role)
	})
	if err != nil {
		return nil, err
	}

	if oldCode != role.Code {
		s.renameRole(ctx, role, oldCode)
	}
	return role, nil
}

// renameRole 把旧编码下的策略换成新编码，并重新计算成员缓存
func (s *RoleService) renameRole(ctx context.Context, role *models.Role, oldCode string) {
	scope := "role:" + role.Code
	if err := s.Store.RemoveFilteredPolicy(ctx, policy.FieldRole, oldCode); err != nil {
		s.diverged("rename_role", scope, err)
		return
	}
	grants, err := s.Repo.PermissionGrantsByRole(ctx, role.ID)
	if err != nil {
		s.diverged("rename_role", scope, err)
		return
	}
	for _, g := range grants {
		if err := s.Store.AddPermission(ctx, g.RoleCode, g.Resource, g.Action, g.Domain); err != nil {
			s.diverged("rename_role", scope, err)
			return
		}
	}
	members, err := s.Repo.UserIDsByRole(ctx, role.ID)
	if err == nil {
		err = rederiveAuthority(ctx, s.Repo, s.Cache, members)
	}
	if err != nil {
		s.diverged("rename_role_cache", scope, err)
	}

	s.Log.WithFields(logrus.Fields{
		"role":     role.Code,
		"old_code": oldCode,
		"policies": len(grants),
	}).Info("角色编码已变更")
}
