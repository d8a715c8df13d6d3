package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"iamcore/internal/models"
	"iamcore/internal/policy"
	"iamcore/internal/repository"
	"iamcore/internal/testutil"
	"iamcore/pkg/cache"
	apperrors "iamcore/pkg/errors"
	"iamcore/pkg/logger"
	"iamcore/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testDomain = "built-in"

// flakyStore 可以按需让策略存储失败
type flakyStore struct {
	policy.Store
	fail atomic.Bool
}

var errStoreDown = errors.New("store down")

func (f *flakyStore) GetFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) ([]policy.Tuple, error) {
	if f.fail.Load() {
		return nil, apperrors.Transient("查询策略", errStoreDown)
	}
	return f.Store.GetFilteredPolicy(ctx, fieldIndex, fieldValues...)
}

func (f *flakyStore) AddPermission(ctx context.Context, role, resource, action, domain string) error {
	if f.fail.Load() {
		return apperrors.Transient("新增策略", errStoreDown)
	}
	return f.Store.AddPermission(ctx, role, resource, action, domain)
}

func (f *flakyStore) RemoveFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) error {
	if f.fail.Load() {
		return apperrors.Transient("删除策略", errStoreDown)
	}
	return f.Store.RemoveFilteredPolicy(ctx, fieldIndex, fieldValues...)
}

type env struct {
	t       *testing.T
	ctx     context.Context
	db      *gorm.DB
	repo    *repository.RelationRepository
	store   *flakyStore
	cache   *cache.AuthorityCache
	redis   *miniredis.Miniredis
	metrics *metrics.Metrics
	sweeper *PolicySweeper
	deps    Deps
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := testutil.NewDB(t)
	mem, err := policy.NewMemoryStore(time.Second)
	require.NoError(t, err)
	c, mr := testutil.NewCache(t)

	e := &env{
		t:       t,
		ctx:     context.Background(),
		db:      db,
		repo:    repository.NewRelationRepository(db),
		store:   &flakyStore{Store: mem},
		cache:   c,
		redis:   mr,
		metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	}
	e.deps = Deps{
		Repo:    e.repo,
		Store:   e.store,
		Cache:   e.cache,
		Locks:   NewScopeLocks(),
		Metrics: e.metrics,
		Log:     logger.Discard(),
		Timeout: 2 * time.Second,
	}
	e.sweeper = NewPolicySweeper(e.deps)
	e.deps.Divergence = e.sweeper
	return e
}

func (e *env) authz() *AuthorizationService { return NewAuthorizationService(e.deps) }
func (e *env) cascade() *CascadeService      { return NewCascadeService(e.deps) }

func (e *env) domain(id, code string) *models.Domain {
	d := &models.Domain{BaseModel: models.BaseModel{ID: id}, Code: code, Name: code, Status: models.StatusEnabled}
	require.NoError(e.t, e.repo.Create(e.ctx, d))
	return d
}

func (e *env) role(id, code string) *models.Role {
	r := &models.Role{BaseModel: models.BaseModel{ID: id}, Code: code, Name: code, PID: models.RootRolePID, Status: models.StatusEnabled}
	require.NoError(e.t, e.repo.Create(e.ctx, r))
	return r
}

func (e *env) user(id, username, domain string) *models.User {
	u := &models.User{BaseModel: models.BaseModel{ID: id}, Username: username, Domain: domain, NickName: username, Status: models.StatusEnabled}
	require.NoError(e.t, u.SetPassword("secret123"))
	require.NoError(e.t, e.repo.Create(e.ctx, u))
	return u
}

func (e *env) endpoint(resource, action string) *models.Endpoint {
	d := RouteDescriptor{Method: "POST", Path: "/" + resource + "/" + action, Resource: resource, Action: action, Controller: "test"}
	ep := d.Endpoint()
	require.NoError(e.t, e.repo.Create(e.ctx, &ep))
	return &ep
}

func (e *env) menu(id, pid uint) *models.Menu {
	m := &models.Menu{ID: id, PID: pid, MenuType: models.MenuTypeMenu, MenuName: "m", RouteName: fmt.Sprintf("route-%d", id), RoutePath: "/m", Component: "view", Status: models.StatusEnabled}
	require.NoError(e.t, e.repo.Create(e.ctx, m))
	return m
}

func (e *env) tuples(fieldIndex int, values ...string) []policy.Tuple {
	got, err := e.store.GetFilteredPolicy(e.ctx, fieldIndex, values...)
	require.NoError(e.t, err)
	return got
}

func (e *env) count(model interface{}, query string, args ...interface{}) int64 {
	var n int64
	require.NoError(e.t, e.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
