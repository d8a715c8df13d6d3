package repository

import (
	"context"
	"errors"
	"testing"

	"iamcore/internal/models"
	"iamcore/internal/testutil"
	apperrors "iamcore/pkg/errors"
	"iamcore/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo *RelationRepository
	ctx  context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{repo: NewRelationRepository(testutil.NewDB(t)), ctx: context.Background()}

	require.NoError(t, f.repo.Create(f.ctx, &models.Domain{BaseModel: models.BaseModel{ID: "d1"}, Code: "built-in", Name: "内置"}))
	require.NoError(t, f.repo.Create(f.ctx, &models.Role{BaseModel: models.BaseModel{ID: "r1"}, Code: "ROLE_A", Name: "A", PID: models.RootRolePID}))
	require.NoError(t, f.repo.Create(f.ctx, &models.Role{BaseModel: models.BaseModel{ID: "r2"}, Code: "ROLE_B", Name: "B", PID: models.RootRolePID}))
	require.NoError(t, f.repo.Create(f.ctx, &models.User{BaseModel: models.BaseModel{ID: "u1"}, Username: "alice", PasswordHash: "x", Domain: "built-in", NickName: "Alice"}))
	require.NoError(t, f.repo.Create(f.ctx, &[]models.Endpoint{
		{ID: "e1", Path: "/menu", Method: "GET", Action: "read", Resource: "menu", Controller: "MenuHandler"},
		{ID: "e2", Path: "/menu", Method: "POST", Action: "write", Resource: "menu", Controller: "MenuHandler"},
	}))
	require.NoError(t, f.repo.Create(f.ctx, &models.Menu{ID: 1, MenuName: "首页", RouteName: "home", RoutePath: "/home", Component: "layout", MenuType: models.MenuTypeMenu}))
	return f
}

func TestLookups_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.repo.FindDomainByCode(f.ctx, "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	_, err = f.repo.FindRoleByID(f.ctx, "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	_, err = f.repo.LockRole(f.ctx, "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	_, err = f.repo.FindMenuByID(f.ctx, 99)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	role, err := f.repo.FindRoleByCode(f.ctx, "ROLE_A")
	require.NoError(t, err)
	assert.Equal(t, "r1", role.ID)
}

func TestCreate_DuplicateIsConflict(t *testing.T) {
	f := newFixture(t)

	err := f.repo.Create(f.ctx, &models.Role{BaseModel: models.BaseModel{ID: "r3"}, Code: "ROLE_A", Name: "dup", PID: models.RootRolePID})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	exists, err := f.repo.Exists(f.ctx, &models.Role{}, "code", "ROLE_A", "r1")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = f.repo.Exists(f.ctx, &models.Role{}, "code", "ROLE_A", nil)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRoleMenus_InsertAndDelete(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.repo.InsertRoleMenus(f.ctx, "r1", "built-in", []uint{1}))
	ids, err := f.repo.MenuIDsByRoleAndDomain(f.ctx, "r1", "built-in")
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, ids)

	ids, err = f.repo.MenuIDsByRoleAndDomain(f.ctx, "r1", "other")
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, f.repo.DeleteRoleMenus(f.ctx, "r1", "built-in", []uint{1}))
	ids, err = f.repo.MenuIDsByRoleAndDomain(f.ctx, "r1", "built-in")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRoleCodesByUser(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.repo.InsertUserRoles(f.ctx, "r2", []string{"u1"}))
	require.NoError(t, f.repo.InsertUserRoles(f.ctx, "r1", []string{"u1"}))

	codes, err := f.repo.RoleCodesByUser(f.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_A", "ROLE_B"}, codes)

	users, err := f.repo.UserIDsByRole(f.ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}

func TestPermissionGrants_SkipsBrokenRows(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.repo.InsertRolePermissions(f.ctx, "r1", "built-in", []string{"e1", "e2"}))
	// 领域不存在的授予不属于关系真相
	require.NoError(t, f.repo.InsertRolePermissions(f.ctx, "r1", "ghost", []string{"e1"}))

	grants, err := f.repo.PermissionGrants(f.ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Grant{
		{RoleCode: "ROLE_A", Resource: "menu", Action: "read", Domain: "built-in"},
		{RoleCode: "ROLE_A", Resource: "menu", Action: "write", Domain: "built-in"},
	}, grants)

	scoped, err := f.repo.PermissionGrantsFor(f.ctx, "r1", "built-in")
	require.NoError(t, err)
	assert.Len(t, scoped, 2)
}

func TestDeleteOrphans(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.repo.InsertRolePermissions(f.ctx, "r1", "built-in", []string{"e1"}))
	require.NoError(t, f.repo.InsertRolePermissions(f.ctx, "r1", "ghost", []string{"e1"}))
	require.NoError(t, f.repo.InsertRoleMenus(f.ctx, "r1", "built-in", []uint{1}))
	require.NoError(t, f.repo.InsertRoleMenus(f.ctx, "r1", "built-in", []uint{42}))
	require.NoError(t, f.repo.InsertUserRoles(f.ctx, "r1", []string{"u1", "u-gone"}))

	counts, err := f.repo.DeleteOrphans(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, OrphanCounts{RoleMenus: 1, UserRoles: 1, RolePermissions: 1}, counts)

	counts, err = f.repo.DeleteOrphans(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Total())
}

func TestDeleteIdentity_NotFoundOnRerun(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.repo.DeleteRoleRow(f.ctx, "r2"))
	err := f.repo.DeleteRoleRow(f.ctx, "r2")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestTransaction_RollsBack(t *testing.T) {
	f := newFixture(t)

	err := f.repo.Transaction(f.ctx, func(tx *RelationRepository) error {
		if err := tx.InsertUserRoles(f.ctx, "r1", []string{"u1"}); err != nil {
			return err
		}
		return apperrors.Conflict("中止")
	})
	assert.True(t, errors.Is(err, apperrors.ErrConflict))

	users, err := f.repo.UserIDsByRole(f.ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestPageEndpoints(t *testing.T) {
	f := newFixture(t)

	list, total, err := f.repo.PageEndpoints(f.ctx, EndpointFilter{Method: "POST"}, &pagination.PageParams{Current: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "e2", list[0].ID)
}

func TestShareLookups(t *testing.T) {
	f := newFixture(t)

	err := f.repo.Transaction(f.ctx, func(tx *RelationRepository) error {
		domain, err := tx.ShareDomain(f.ctx, "built-in")
		require.NoError(t, err)
		assert.Equal(t, "d1", domain.ID)

		_, err = tx.ShareDomain(f.ctx, "missing")
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))

		users, err := tx.ShareUsers(f.ctx, []string{"u1", "ghost"})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "u1", users[0].ID)

		users, err = tx.ShareUsers(f.ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, users)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, f.repo.DeleteUserRow(f.ctx, "u1"))
	users, err := f.repo.ShareUsers(f.ctx, []string{"u1"})
	require.NoError(t, err)
	assert.Empty(t, users)
}
