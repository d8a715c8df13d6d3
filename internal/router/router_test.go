package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"iamcore/internal/models"
	"iamcore/internal/policy"
	"iamcore/internal/repository"
	"iamcore/internal/services"
	"iamcore/internal/testutil"
	"iamcore/pkg/config"
	"iamcore/pkg/jwt"
	"iamcore/pkg/logger"
	"iamcore/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t      *testing.T
	ctx    context.Context
	engine *gin.Engine
	routes []services.RouteDescriptor
	svc    *services.Set
	role   *models.Role
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	store, err := policy.NewMemoryStore(time.Second)
	require.NoError(t, err)
	authorityCache, _ := testutil.NewCache(t)
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	manager := jwt.NewJWTManager(config.JWTConfig{
		SecretKey:        "access",
		RefreshSecretKey: "refresh",
		TokenDuration:    time.Hour,
		RefreshDuration:  2 * time.Hour,
		Issuer:           "test",
	})

	deps := services.Deps{
		Repo:    repository.NewRelationRepository(db),
		Store:   store,
		Cache:   authorityCache,
		Locks:   services.NewScopeLocks(),
		Metrics: m,
		Log:     logger.Discard(),
		Timeout: 2 * time.Second,
	}
	svc := services.NewSet(deps, manager, "ROLE_USER")

	engine, routes := SetupRouter(Options{
		CORS:     config.CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{"GET", "POST"}},
		Log:      logger.Discard(),
		Metrics:  m,
		Gatherer: registry,
		JWT:      manager,
		Roles:    authorityCache,
		Enforcer: store,
		Services: svc,
	})

	h := &harness{t: t, ctx: context.Background(), engine: engine, routes: routes, svc: svc}

	_, err = svc.Endpoint.SyncCatalog(h.ctx, routes)
	require.NoError(t, err)
	_, err = svc.Domain.Create(h.ctx, services.DomainInput{Code: "built-in", Name: "内置领域"}, "")
	require.NoError(t, err)
	h.role, err = svc.Role.Create(h.ctx, services.RoleInput{
		Code: "ROLE_USER", Name: "普通用户", PID: models.RootRolePID, Status: models.StatusEnabled,
	}, "")
	require.NoError(t, err)
	_, err = svc.User.Create(h.ctx, services.CreateUserInput{
		Username: "alice", Password: "secret123", Domain: "built-in", NickName: "Alice",
	}, "")
	require.NoError(t, err)
	return h
}

// grant 为默认角色授予指定 resource:action 的接口
func (h *harness) grant(pairs ...string) {
	h.t.Helper()
	var ids []string
	for _, d := range h.routes {
		for _, p := range pairs {
			if d.Resource+":"+d.Action == p {
				ids = append(ids, services.EndpointID(d.Method, d.Path))
			}
		}
	}
	_, err := h.svc.Authorization.SyncPermissions(h.ctx, "built-in", h.role.ID, ids)
	require.NoError(h.t, err)
}

func (h *harness) do(method, path, token string, body interface{}) map[string]interface{} {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	require.Equal(h.t, http.StatusOK, w.Code)

	var out map[string]interface{}
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (h *harness) login() string {
	h.t.Helper()
	out := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"identifier": "alice", "password": "secret123"})
	require.EqualValues(h.t, 200, out["code"], out["message"])
	data := out["data"].(map[string]interface{})
	return data["token"].(string)
}

func TestSetupRouter_RecordsSecuredRoutes(t *testing.T) {
	h := newHarness(t)

	byKey := make(map[string]services.RouteDescriptor)
	for _, d := range h.routes {
		byKey[d.Method+" "+d.Path] = d
	}
	create, ok := byKey["POST /api/v1/role"]
	require.True(t, ok)
	assert.Equal(t, "role", create.Resource)
	assert.Equal(t, "create", create.Action)
	assert.Equal(t, "RoleController", create.Controller)

	assert.Contains(t, byKey, "DELETE /api/v1/domain/:id")
	assert.Contains(t, byKey, "POST /api/v1/authorization/assign-permission")
	assert.NotContains(t, byKey, "POST /api/v1/auth/login", "公开接口不进入目录")
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	out := h.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.EqualValues(t, 200, out["code"])
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)
	out := h.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"identifier": "alice", "password": "nope"})
	assert.EqualValues(t, 400, out["code"])
}

func TestSecuredRoute_ForbiddenUntilGranted(t *testing.T) {
	h := newHarness(t)
	token := h.login()
	body := services.DomainInput{Code: "tenant-a", Name: "租户A"}

	out := h.do(http.MethodPost, "/api/v1/domain", token, body)
	assert.EqualValues(t, 403, out["code"])

	h.grant("domain:create")
	out = h.do(http.MethodPost, "/api/v1/domain", token, body)
	assert.EqualValues(t, 200, out["code"], out["message"])

	out = h.do(http.MethodPost, "/api/v1/domain", token, body)
	assert.EqualValues(t, 409, out["code"])
}

func TestAssignPermission_TakesEffectForCallersInDomain(t *testing.T) {
	h := newHarness(t)
	h.grant("authorization:assign-permission")
	token := h.login()

	roleCreate := services.EndpointID(http.MethodPost, "/api/v1/role")
	out := h.do(http.MethodPost, "/api/v1/authorization/assign-permission", token, map[string]interface{}{
		"domain":      "built-in",
		"roleId":      h.role.ID,
		"permissions": []string{services.EndpointID(http.MethodPost, "/api/v1/authorization/assign-permission"), roleCreate},
	})
	require.EqualValues(t, 200, out["code"], out["message"])

	out = h.do(http.MethodPost, "/api/v1/role", token, services.RoleInput{
		Code: "ROLE_OPS", Name: "运维", PID: models.RootRolePID, Status: models.StatusEnabled,
	})
	assert.EqualValues(t, 200, out["code"], out["message"])
}

func TestAssignPermission_BadRequestAndNotFound(t *testing.T) {
	h := newHarness(t)
	h.grant("authorization:assign-permission")
	token := h.login()

	out := h.do(http.MethodPost, "/api/v1/authorization/assign-permission", token, map[string]interface{}{"domain": "built-in"})
	assert.EqualValues(t, 400, out["code"])

	out = h.do(http.MethodPost, "/api/v1/authorization/assign-permission", token, map[string]interface{}{
		"domain": "ghost", "roleId": h.role.ID, "permissions": []string{},
	})
	assert.EqualValues(t, 404, out["code"])
}

func TestLogout_DropsCachedRoles(t *testing.T) {
	h := newHarness(t)
	h.grant("endpoint:read")
	token := h.login()

	out := h.do(http.MethodGet, "/api/v1/endpoint/page?current=1&size=5", token, nil)
	require.EqualValues(t, 200, out["code"], out["message"])
	page := out["data"].(map[string]interface{})
	assert.EqualValues(t, 1, page["current"])
	assert.EqualValues(t, 5, page["size"])
	assert.EqualValues(t, len(h.routes), page["total"])

	out = h.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.EqualValues(t, 200, out["code"])

	out = h.do(http.MethodGet, "/api/v1/endpoint/page", token, nil)
	assert.EqualValues(t, 403, out["code"])
}

func TestDeleteMenu_InvalidID(t *testing.T) {
	h := newHarness(t)
	h.grant("menu:delete")
	token := h.login()

	out := h.do(http.MethodDelete, "/api/v1/menu/abc", token, nil)
	assert.EqualValues(t, 400, out["code"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/api/v1/health", "", nil)

	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "authz_http_requests_total")
}

func TestRoleAssignmentReadBack(t *testing.T) {
	h := newHarness(t)
	h.grant("authorization:read-permissions", "authorization:read-policies", "authorization:read-routes")
	token := h.login()

	out := h.do(http.MethodGet, "/api/v1/authorization/permissions?domain=built-in&roleId="+h.role.ID, token, nil)
	require.EqualValues(t, 200, out["code"], out["message"])
	assert.Len(t, out["data"], 3)

	out = h.do(http.MethodGet, "/api/v1/authorization/policies?domain=built-in&roleCode=ROLE_USER", token, nil)
	require.EqualValues(t, 200, out["code"], out["message"])
	assert.Len(t, out["data"], 3)

	out = h.do(http.MethodGet, "/api/v1/authorization/routes?domain=built-in&roleId="+h.role.ID, token, nil)
	require.EqualValues(t, 200, out["code"], out["message"])
	assert.Empty(t, out["data"])

	out = h.do(http.MethodGet, "/api/v1/authorization/routes?roleId="+h.role.ID, token, nil)
	assert.EqualValues(t, 400, out["code"])
}
