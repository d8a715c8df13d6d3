package services

import (
	"sync"
	"testing"

	"iamcore/internal/models"
	"iamcore/internal/policy"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_ReconcilesTowardRelations(t *testing.T) {
	e := newEnv(t)
	e.domain("d1", testDomain)
	e.role("r1", "R1")
	read := e.endpoint("menu", "read")
	write := e.endpoint("menu", "write")

	// 关系库有授予但策略缺失
	require.NoError(t, e.repo.InsertRolePermissions(e.ctx, "r1", testDomain, []string{read.ID, write.ID}))
	// 策略中有关系库不存在的授予
	require.NoError(t, e.store.AddPermission(e.ctx, "R1", "menu", "delete", testDomain))
	require.NoError(t, e.store.AddPermission(e.ctx, "GHOST", "menu", "read", testDomain))
	// 孤儿关联行
	require.NoError(t, e.repo.InsertUserRoles(e.ctx, "r1", []string{"no-such-user"}))
	require.NoError(t, e.repo.InsertRoleMenus(e.ctx, "r1", testDomain, []uint{77}))

	res, err := e.sweeper.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PolicyAdded)
	assert.Equal(t, 2, res.PolicyRemoved)
	assert.Equal(t, int64(2), res.OrphansRemoved)

	assert.ElementsMatch(t, []policy.Tuple{
		policy.NewTuple("R1", "menu", "read", testDomain),
		policy.NewTuple("R1", "menu", "write", testDomain),
	}, e.tuples(policy.FieldRole))
	assert.Zero(t, e.count(&models.UserRole{}, "1 = 1"))
	assert.Zero(t, e.count(&models.RoleMenu{}, "1 = 1"))

	res, err = e.sweeper.Sweep(e.ctx)
	require.NoError(t, err)
	assert.Zero(t, res.PolicyAdded)
	assert.Zero(t, res.PolicyRemoved)
	assert.Zero(t, res.OrphansRemoved)
	assert.Equal(t, float64(2), promtest.ToFloat64(e.metrics.SweepRunsTotal.WithLabelValues("success")))
}

func TestSweep_FailureKeepsPendingScopes(t *testing.T) {
	e := newEnv(t)
	e.sweeper.MarkDivergent("permission:R1@" + testDomain)

	e.store.fail.Store(true)
	_, err := e.sweeper.Sweep(e.ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"permission:R1@" + testDomain}, e.sweeper.Pending())
	assert.Equal(t, float64(1), promtest.ToFloat64(e.metrics.SweepRunsTotal.WithLabelValues("error")))
}

func TestSweep_ConcurrentCallsAreSafe(t *testing.T) {
	e := newEnv(t)
	e.domain("d1", testDomain)
	e.role("r1", "R1")
	read := e.endpoint("menu", "read")
	require.NoError(t, e.repo.InsertRolePermissions(e.ctx, "r1", testDomain, []string{read.ID}))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.sweeper.Sweep(e.ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, e.tuples(policy.FieldRole, "R1"), 1)
}

func TestSweeper_StartStop(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.sweeper.Start(""))
	assert.Error(t, e.sweeper.Start("not a cron"))

	require.NoError(t, e.sweeper.Start("@every 1h"))
	assert.Error(t, e.sweeper.Start("@every 1h"))
	e.sweeper.Stop()
	e.sweeper.Stop()
}
