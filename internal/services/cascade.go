package services

import (
	"context"

	"iamcore/internal/models"
	"iamcore/internal/policy"
	"iamcore/internal/repository"
	apperrors "iamcore/pkg/errors"

	"github.com/sirupsen/logrus"
)

// CascadeService 删除领域、角色、用户、菜单，并清理全部依赖的关联行、策略与缓存
//
// 关系行在一个事务中删除，身份行最先删除；策略清理在提交后执行。
// 重复调用时身份行已不存在，返回 NotFound。
type CascadeService struct {
	Deps
}

func NewCascadeService(deps Deps) *CascadeService {
	return &CascadeService{Deps: deps}
}

// DeleteDomain 删除领域及其下的角色菜单、角色权限、用户和用户角色
func (s *CascadeService) DeleteDomain(ctx context.Context, id string) error {
	unlock := s.Locks.Shared()
	defer unlock()

	var (
		domain  *models.Domain
		userIDs []string
		removed int64
	)
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		var err error
		if domain, err = tx.FindDomainByID(txCtx, id); err != nil {
			return err
		}
		if err := tx.DeleteDomainRow(txCtx, id); err != nil {
			return err
		}
		n, err := tx.DeleteRoleMenusBy(txCtx, "domain", domain.Code)
		if err != nil {
			return err
		}
		removed += n
		if n, err = tx.DeleteRolePermissionsBy(txCtx, "domain", domain.Code); err != nil {
			return err
		}
		removed += n
		if userIDs, err = tx.UserIDsByDomain(txCtx, domain.Code); err != nil {
			return err
		}
		// 用户行必须先于用户角色删除
		if _, err = tx.DeleteUsers(txCtx, userIDs); err != nil {
			return err
		}
		if n, err = tx.DeleteUserRolesByUsers(txCtx, userIDs); err != nil {
			return err
		}
		removed += n
		return nil
	})
	if err != nil {
		return err
	}
	s.Metrics.RecordMutations("domain_cascade", 0, int(removed))

	if err := s.Store.RemoveFilteredPolicy(ctx, policy.FieldDomain, domain.Code); err != nil {
		s.diverged("delete_domain", "domain:"+domain.Code, err)
	}
	if err := s.Cache.Invalidate(ctx, userIDs...); err != nil {
		s.diverged("delete_domain_cache", "domain:"+domain.Code, err)
	}

	s.Log.WithFields(logrus.Fields{
		"domain":  domain.Code,
		"users":   len(userIDs),
		"removed": removed,
	}).Info("领域已删除")
	return nil
}

// DeleteRole 删除角色及其菜单、权限、成员关系，成员的缓存按剩余角色重新计算
func (s *CascadeService) DeleteRole(ctx context.Context, id string) error {
	unlock := s.Locks.Lock(id)
	defer unlock()

	var (
		role    *models.Role
		members []string
		removed int64
	)
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		var err error
		if role, err = tx.LockRole(txCtx, id); err != nil {
			return err
		}
		if err := tx.DeleteRoleRow(txCtx, id); err != nil {
			return err
		}
		n, err := tx.DeleteRoleMenusBy(txCtx, "role_id", id)
		if err != nil {
			return err
		}
		removed += n
		if n, err = tx.DeleteRolePermissionsBy(txCtx, "role_id", id); err != nil {
			return err
		}
		removed += n
		if members, err = tx.UserIDsByRole(txCtx, id); err != nil {
			return err
		}
		n, err = tx.DeleteUserRolesByRole(txCtx, id)
		removed += n
		return err
	})
	if err != nil {
		return err
	}
	s.Metrics.RecordMutations("role_cascade", 0, int(removed))

	if err := s.Store.RemoveFilteredPolicy(ctx, policy.FieldRole, role.Code); err != nil {
		s.diverged("delete_role", "role:"+role.Code, err)
	}
	if err := rederiveAuthority(ctx, s.Repo, s.Cache, members); err != nil {
		s.diverged("delete_role_cache", "role:"+role.Code, err)
	}

	s.Log.WithFields(logrus.Fields{
		"role":    role.Code,
		"members": len(members),
		"removed": removed,
	}).Info("角色已删除")
	return nil
}

// DeleteUser 删除用户及其角色关系，并删除缓存
func (s *CascadeService) DeleteUser(ctx context.Context, id string) error {
	unlock := s.Locks.Shared()
	defer unlock()

	var removed int64
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		if err := tx.DeleteUserRow(txCtx, id); err != nil {
			return err
		}
		var err error
		removed, err = tx.DeleteUserRolesByUsers(txCtx, []string{id})
		return err
	})
	if err != nil {
		return err
	}
	s.Metrics.RecordMutations("user_role", 0, int(removed))

	if err := s.Cache.Invalidate(ctx, id); err != nil {
		s.diverged("delete_user_cache", "user:"+id, err)
	}

	s.Log.WithFields(logrus.Fields{"user": id, "removed": removed}).Info("用户已删除")
	return nil
}

// DeleteMenu 删除菜单及引用它的角色菜单，存在子菜单时返回 Conflict
func (s *CascadeService) DeleteMenu(ctx context.Context, id uint) error {
	unlock := s.Locks.Shared()
	defer unlock()

	var removed int64
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		if _, err := tx.FindMenuByID(txCtx, id); err != nil {
			return err
		}
		children, err := tx.CountMenuChildren(txCtx, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return apperrors.Conflict("菜单 %d 存在子菜单，请先删除子菜单", id)
		}
		if err := tx.DeleteMenuRow(txCtx, id); err != nil {
			return err
		}
		removed, err = tx.DeleteRoleMenusBy(txCtx, "menu_id", id)
		return err
	})
	if err != nil {
		return err
	}
	s.Metrics.RecordMutations("role_menu", 0, int(removed))

	s.Log.WithFields(logrus.Fields{"menu": id, "removed": removed}).Info("菜单已删除")
	return nil
}
