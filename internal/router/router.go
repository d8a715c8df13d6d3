package router

import (
	"path"
	"time"

	"iamcore/internal/handlers"
	"iamcore/internal/middleware"
	"iamcore/internal/services"
	"iamcore/pkg/config"
	"iamcore/pkg/jwt"
	"iamcore/pkg/metrics"
	"iamcore/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Options 路由装配依赖
type Options struct {
	CORS     config.CORSConfig
	Log      *logrus.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	JWT      *jwt.JWTManager
	Roles    middleware.RoleReader
	Enforcer middleware.Enforcer
	Services *services.Set
}

// catalog 记录受权限保护的路由，启动时用于重建接口目录
type catalog struct {
	auth   *middleware.AuthMiddleware
	routes []services.RouteDescriptor
}

// secured 某个控制器下的受保护路由组
type secured struct {
	*catalog
	group      *gin.RouterGroup
	controller string
}

func (c *catalog) controller(group *gin.RouterGroup, name string) secured {
	return secured{catalog: c, group: group, controller: name}
}

// handle 注册路由并登记为 resource:action 接口
func (s secured) handle(method, relativePath, resource, action, summary string, handler gin.HandlerFunc) {
	s.routes = append(s.routes, services.RouteDescriptor{
		Method:     method,
		Path:       path.Join(s.group.BasePath(), relativePath),
		Resource:   resource,
		Action:     action,
		Controller: s.controller,
		Summary:    summary,
	})
	s.group.Handle(method, relativePath, s.auth.RequireLogin(), s.auth.RequirePermission(resource, action), handler)
}

// SetupRouter 设置路由，返回引擎和受保护接口清单
func SetupRouter(opts Options) (*gin.Engine, []services.RouteDescriptor) {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler(opts.Log))
	router.Use(middleware.SetupCORS(opts.CORS))
	router.Use(opts.Metrics.Middleware())

	router.GET("/metrics", metrics.Handler(opts.Gatherer))

	routes := registerRoutes(router, opts)
	return router, routes
}

// 注册所有路由
func registerRoutes(router *gin.Engine, opts Options) []services.RouteDescriptor {
	auth := middleware.NewAuthMiddleware(opts.JWT, opts.Roles, opts.Enforcer)
	c := &catalog{auth: auth}
	svc := opts.Services

	api := router.Group("/api/v1")
	{
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// 认证路由
		authHandler := handlers.NewAuthHandler(svc.Auth)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.RefreshToken)
			authGroup.POST("/logout", auth.RequireLogin(), authHandler.Logout)
		}

		// 领域
		domainHandler := handlers.NewDomainHandler(svc.Domain, svc.Cascade)
		domains := c.controller(api.Group("/domain"), "DomainController")
		domains.handle("POST", "", "domain", "create", "创建领域", domainHandler.Create)
		domains.handle("PUT", "", "domain", "update", "更新领域", domainHandler.Update)
		domains.handle("DELETE", "/:id", "domain", "delete", "删除领域", domainHandler.Delete)

		// 角色
		roleHandler := handlers.NewRoleHandler(svc.Role, svc.Cascade)
		roles := c.controller(api.Group("/role"), "RoleController")
		roles.handle("POST", "", "role", "create", "创建角色", roleHandler.Create)
		roles.handle("PUT", "", "role", "update", "更新角色", roleHandler.Update)
		roles.handle("DELETE", "/:id", "role", "delete", "删除角色", roleHandler.Delete)

		// 用户
		userHandler := handlers.NewUserHandler(svc.User, svc.Cascade)
		users := c.controller(api.Group("/user"), "UserController")
		users.handle("POST", "", "user", "create", "创建用户", userHandler.Create)
		users.handle("PUT", "", "user", "update", "更新用户", userHandler.Update)
		users.handle("DELETE", "/:id", "user", "delete", "删除用户", userHandler.Delete)

		// 菜单
		menuHandler := handlers.NewMenuHandler(svc.Menu, svc.Cascade)
		menus := c.controller(api.Group("/menu"), "MenuController")
		menus.handle("POST", "", "menu", "create", "创建菜单", menuHandler.Create)
		menus.handle("PUT", "", "menu", "update", "更新菜单", menuHandler.Update)
		menus.handle("DELETE", "/:id", "menu", "delete", "删除菜单", menuHandler.Delete)

		// 授权
		authzHandler := handlers.NewAuthorizationHandler(svc.Authorization, svc.Sweeper)
		authz := c.controller(api.Group("/authorization"), "AuthorizationController")
		authz.handle("POST", "/assign-permission", "authorization", "assign-permission", "为角色分配接口权限", authzHandler.AssignPermission)
		authz.handle("POST", "/assign-routes", "authorization", "assign-routes", "为角色分配菜单", authzHandler.AssignRoutes)
		authz.handle("POST", "/assign-users", "authorization", "assign-users", "为角色分配用户", authzHandler.AssignUsers)
		authz.handle("POST", "/reconcile", "authorization", "reconcile", "策略对账", authzHandler.Reconcile)
		authz.handle("GET", "/routes", "authorization", "read-routes", "查询角色菜单", authzHandler.RoleRoutes)
		authz.handle("GET", "/permissions", "authorization", "read-permissions", "查询角色接口权限", authzHandler.RolePermissions)
		authz.handle("GET", "/policies", "authorization", "read-policies", "查询角色策略", authzHandler.RolePolicies)

		// 接口目录
		endpointHandler := handlers.NewEndpointHandler(svc.Endpoint)
		endpoints := c.controller(api.Group("/endpoint"), "EndpointController")
		endpoints.handle("GET", "/page", "endpoint", "read", "分页查询接口", endpointHandler.Page)
	}
	return c.routes
}

func healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "iamcore",
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
