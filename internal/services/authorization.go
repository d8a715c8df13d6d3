package services

import (
	"context"
	"sort"
	"strings"

	"iamcore/internal/models"
	"iamcore/internal/policy"
	"iamcore/internal/repository"
	apperrors "iamcore/pkg/errors"

	"github.com/sirupsen/logrus"
)

// SyncResult 一次同步实际发生的变更
type SyncResult struct {
	Added         int  `json:"added"`
	Removed       int  `json:"removed"`
	PolicyAdded   int  `json:"policyAdded"`
	PolicyRemoved int  `json:"policyRemoved"`
	Diverged      bool `json:"diverged"`
}

// AuthorizationService 把三类关联关系同步到期望集合
type AuthorizationService struct {
	Deps
}

func NewAuthorizationService(deps Deps) *AuthorizationService {
	return &AuthorizationService{Deps: deps}
}

// SyncPermissions 同步角色在领域下的接口权限，并把差异应用到策略存储
//
// 先删后增；未变化的策略不会被触碰。permissionIDs 为空表示清空该范围。
func (s *AuthorizationService) SyncPermissions(ctx context.Context, domain, roleID string, permissionIDs []string) (*SyncResult, error) {
	if domain == "" || roleID == "" {
		return nil, apperrors.Invalid("领域和角色不能为空")
	}
	desired := unique(permissionIDs)

	unlock := s.Locks.Lock(roleID)
	defer unlock()

	result := &SyncResult{}
	var (
		role      *models.Role
		endpoints []models.Endpoint
	)
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		if _, err := tx.ShareDomain(txCtx, domain); err != nil {
			return err
		}
		var err error
		if role, err = tx.LockRole(txCtx, roleID); err != nil {
			return err
		}
		if endpoints, err = tx.FindEndpointsByIDs(txCtx, desired); err != nil {
			return err
		}
		if absent := missing(desired, endpointIDs(endpoints)); len(absent) > 0 {
			return apperrors.NotFound("接口不存在: %s", strings.Join(absent, ","))
		}

		current, err := tx.EndpointIDsByRoleAndDomain(txCtx, roleID, domain)
		if err != nil {
			return err
		}
		add, remove := diffSets(current, desired)
		if err := tx.DeleteRolePermissions(txCtx, roleID, domain, remove); err != nil {
			return err
		}
		if err := tx.InsertRolePermissions(txCtx, roleID, domain, add); err != nil {
			return err
		}
		result.Added, result.Removed = len(add), len(remove)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordMutations("role_permission", result.Added, result.Removed)

	wanted := make([]policy.Tuple, 0, len(endpoints))
	for _, e := range endpoints {
		wanted = append(wanted, policy.NewTuple(role.Code, e.Resource, e.Action, domain))
	}
	added, removed, err := applyPolicyDiff(ctx, s.Store, role.Code, domain, wanted)
	result.PolicyAdded, result.PolicyRemoved = added, removed
	s.Metrics.RecordPolicyMutations(added, removed)
	if err != nil {
		result.Diverged = true
		s.diverged("sync_permissions", permissionScope(role.Code, domain), err)
	}

	s.Log.WithFields(logrus.Fields{
		"role":           role.Code,
		"domain":         domain,
		"added":          result.Added,
		"removed":        result.Removed,
		"policy_added":   result.PolicyAdded,
		"policy_removed": result.PolicyRemoved,
	}).Info("角色权限同步完成")
	return result, nil
}

// applyPolicyDiff 把 (role, domain) 范围内的策略同步为 wanted，所有删除完成后才开始新增
func applyPolicyDiff(ctx context.Context, store policy.Store, roleCode, domain string, wanted []policy.Tuple) (added, removed int, err error) {
	existing, err := store.GetFilteredPolicy(ctx, policy.FieldRole, roleCode, "", "", domain)
	if err != nil {
		return 0, 0, err
	}

	want := make(map[string]policy.Tuple, len(wanted))
	for _, t := range wanted {
		want[t.Key()] = t
	}
	have := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		have[t.Key()] = struct{}{}
		if _, ok := want[t.Key()]; ok {
			continue
		}
		if err := store.RemoveFilteredPolicy(ctx, policy.FieldRole, t.Role, t.Resource, t.Action, t.Domain); err != nil {
			return added, removed, err
		}
		removed++
	}

	keys := make([]string, 0, len(want))
	for k := range want {
		if _, ok := have[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		t := want[k]
		if err := store.AddPermission(ctx, t.Role, t.Resource, t.Action, t.Domain); err != nil {
			return added, removed, err
		}
		added++
	}
	return added, removed, nil
}

// SyncRoutes 同步角色在领域下的菜单；menuIDs 为空表示清空该范围
func (s *AuthorizationService) SyncRoutes(ctx context.Context, domain, roleID string, menuIDs []uint) (*SyncResult, error) {
	if domain == "" || roleID == "" {
		return nil, apperrors.Invalid("领域和角色不能为空")
	}
	desired := unique(menuIDs)

	unlock := s.Locks.Lock(roleID)
	defer unlock()

	result := &SyncResult{}
	var role *models.Role
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		if _, err := tx.ShareDomain(txCtx, domain); err != nil {
			return err
		}
		var err error
		if role, err = tx.LockRole(txCtx, roleID); err != nil {
			return err
		}
		menus, err := tx.FindMenusByIDs(txCtx, desired)
		if err != nil {
			return err
		}
		found := make([]uint, 0, len(menus))
		for _, m := range menus {
			found = append(found, m.ID)
		}
		if absent := missing(desired, found); len(absent) > 0 {
			return apperrors.NotFound("菜单不存在: %v", absent)
		}

		current, err := tx.MenuIDsByRoleAndDomain(txCtx, roleID, domain)
		if err != nil {
			return err
		}
		add, remove := diffSets(current, desired)
		if err := tx.DeleteRoleMenus(txCtx, roleID, domain, remove); err != nil {
			return err
		}
		if err := tx.InsertRoleMenus(txCtx, roleID, domain, add); err != nil {
			return err
		}
		result.Added, result.Removed = len(add), len(remove)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordMutations("role_menu", result.Added, result.Removed)

	s.Log.WithFields(logrus.Fields{
		"role":    role.Code,
		"domain":  domain,
		"added":   result.Added,
		"removed": result.Removed,
	}).Info("角色菜单同步完成")
	return result, nil
}

// SyncUsers 同步角色的成员；至少需要一个用户，且每个用户都必须存在
//
// 提交后只重新计算受影响用户的缓存，没有缓存的用户不会被创建条目。
func (s *AuthorizationService) SyncUsers(ctx context.Context, roleID string, userIDs []string) (*SyncResult, error) {
	if roleID == "" {
		return nil, apperrors.Invalid("角色不能为空")
	}
	desired := unique(userIDs)

	unlock := s.Locks.Lock(roleID)
	defer unlock()

	result := &SyncResult{}
	var (
		role     *models.Role
		affected []string
	)
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		var err error
		if role, err = tx.LockRole(txCtx, roleID); err != nil {
			return err
		}
		if len(desired) == 0 {
			return apperrors.NotFound("用户不存在")
		}
		users, err := tx.ShareUsers(txCtx, desired)
		if err != nil {
			return err
		}
		found := make([]string, 0, len(users))
		for _, u := range users {
			found = append(found, u.ID)
		}
		if absent := missing(desired, found); len(absent) > 0 {
			return apperrors.NotFound("用户不存在: %s", strings.Join(absent, ","))
		}

		current, err := tx.UserIDsByRole(txCtx, roleID)
		if err != nil {
			return err
		}
		add, remove := diffSets(current, desired)
		if err := tx.DeleteUserRoles(txCtx, roleID, remove); err != nil {
			return err
		}
		if err := tx.InsertUserRoles(txCtx, roleID, add); err != nil {
			return err
		}
		result.Added, result.Removed = len(add), len(remove)
		affected = append(append(affected, add...), remove...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordMutations("user_role", result.Added, result.Removed)

	if err := rederiveAuthority(ctx, s.Repo, s.Cache, affected); err != nil {
		result.Diverged = true
		s.diverged("sync_users", userScope(role.Code), err)
	}

	s.Log.WithFields(logrus.Fields{
		"role":    role.Code,
		"added":   result.Added,
		"removed": result.Removed,
	}).Info("角色用户同步完成")
	return result, nil
}

// RoleRouteIDs 角色在领域下当前的菜单ID集合
func (s *AuthorizationService) RoleRouteIDs(ctx context.Context, domain, roleID string) ([]uint, error) {
	if domain == "" || roleID == "" {
		return nil, apperrors.Invalid("领域和角色不能为空")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ids, err := s.Repo.MenuIDsByRoleAndDomain(ctx, roleID, domain)
	if err != nil {
		return nil, err
	}
	ids = unique(ids)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// RolePermissionIDs 角色在领域下当前的接口ID集合
func (s *AuthorizationService) RolePermissionIDs(ctx context.Context, domain, roleID string) ([]string, error) {
	if domain == "" || roleID == "" {
		return nil, apperrors.Invalid("领域和角色不能为空")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ids, err := s.Repo.EndpointIDsByRoleAndDomain(ctx, roleID, domain)
	if err != nil {
		return nil, err
	}
	ids = unique(ids)
	sort.Strings(ids)
	return ids, nil
}

// RolePolicies 策略存储中角色在领域下的策略
func (s *AuthorizationService) RolePolicies(ctx context.Context, domain, roleCode string) ([]policy.Tuple, error) {
	if domain == "" || roleCode == "" {
		return nil, apperrors.Invalid("领域和角色编码不能为空")
	}
	tuples, err := s.Store.GetFilteredPolicy(ctx, policy.FieldRole, roleCode, "", "", domain)
	if err != nil {
		return nil, err
	}
	sort.Slice(tuples, func(i, j int) bool { return tuples[i].Key() < tuples[j].Key() })
	return tuples, nil
}

// rederiveAuthority 按用户-角色关系重新计算已有缓存条目，保留剩余TTL
func rederiveAuthority(ctx context.Context, repo *repository.RelationRepository, cache AuthorityCache, userIDs []string) error {
	var firstErr error
	for _, id := range userIDs {
		roles, err := repo.RoleCodesByUser(ctx, id)
		if err == nil {
			err = cache.Replace(ctx, id, roles)
		}
		if err != nil {
			// 无法重新计算时直接删除条目，下次登录重建
			if invErr := cache.Invalidate(ctx, id); invErr != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func permissionScope(roleCode, domain string) string {
	return "permission:" + roleCode + "@" + domain
}

func userScope(roleCode string) string {
	return "user_role:" + roleCode
}

func endpointIDs(endpoints []models.Endpoint) []string {
	ids := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		ids = append(ids, e.ID)
	}
	return ids
}

func missing[T comparable](want, found []T) []T {
	have := make(map[T]struct{}, len(found))
	for _, v := range found {
		have[v] = struct{}{}
	}
	var out []T
	for _, v := range want {
		if _, ok := have[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
