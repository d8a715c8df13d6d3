package main

import (
	"context"
	"testing"
	"time"

	"iamcore/internal/policy"
	"iamcore/internal/repository"
	"iamcore/internal/services"
	"iamcore/internal/testutil"
	"iamcore/pkg/config"
	"iamcore/pkg/jwt"
	"iamcore/pkg/logger"
	"iamcore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	store, err := policy.NewMemoryStore(time.Second)
	require.NoError(t, err)
	authorityCache, _ := testutil.NewCache(t)

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	deps := services.Deps{
		Repo:    repository.NewRelationRepository(db),
		Store:   store,
		Cache:   authorityCache,
		Locks:   services.NewScopeLocks(),
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
		Log:     logger.Discard(),
		Timeout: time.Second,
	}
	svc := services.NewSet(deps, jwt.NewJWTManager(cfg.JWT), cfg.Authz.DefaultRoleCode)

	routes := []services.RouteDescriptor{
		{Method: "POST", Path: "/api/v1/role", Resource: "role", Action: "create", Controller: "RoleController"},
		{Method: "DELETE", Path: "/api/v1/role/:id", Resource: "role", Action: "delete", Controller: "RoleController"},
	}
	_, err = svc.Endpoint.SyncCatalog(ctx, routes)
	require.NoError(t, err)

	s := &seeder{cfg: cfg.Authz, repo: deps.Repo, svc: svc, log: logger.Discard()}
	require.NoError(t, s.run(ctx))
	require.NoError(t, s.run(ctx))

	admin, err := deps.Repo.FindUserByUsername(ctx, cfg.Authz.AdminUsername)
	require.NoError(t, err)
	codes, err := deps.Repo.RoleCodesByUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{cfg.Authz.SuperRoleCode, cfg.Authz.DefaultRoleCode}, codes)

	ok, err := store.Enforce(ctx, cfg.Authz.SuperRoleCode, "role", "delete", cfg.Authz.BuiltInDomain)
	require.NoError(t, err)
	assert.True(t, ok)

	tuples, err := store.GetFilteredPolicy(ctx, 0, cfg.Authz.SuperRoleCode)
	require.NoError(t, err)
	assert.Len(t, tuples, 2)
}
