package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iamcore/internal/database"
	"iamcore/internal/policy"
	"iamcore/internal/repository"
	"iamcore/internal/router"
	"iamcore/internal/services"
	"iamcore/pkg/config"
	"iamcore/pkg/jwt"
	"iamcore/pkg/logger"
	"iamcore/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting authorization core...")

	ctx := context.Background()

	// 初始化数据库
	if err := database.Initialize(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
		if err := database.CloseAuthorityCache(); err != nil {
			appLogger.Error("Failed to close Redis:", err)
		}
	}()

	if err := database.Migrate(database.GetDB(), appLogger); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	authorityCache, err := database.InitializeAuthorityCache(ctx, cfg)
	if err != nil {
		appLogger.Fatalf("Failed to initialize authority cache: %v", err)
	}

	store, err := policy.NewCasbinStore(database.GetDB(), cfg.Authz.StoreTimeout)
	if err != nil {
		appLogger.Fatalf("Failed to initialize policy store: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(registry)

	tokens := jwt.NewJWTManager(cfg.JWT)
	deps := services.Deps{
		Repo:    repository.NewRelationRepository(database.GetDB()),
		Store:   store,
		Cache:   authorityCache,
		Locks:   services.NewScopeLocks(),
		Metrics: appMetrics,
		Log:     appLogger,
		Timeout: cfg.Authz.StoreTimeout,
	}
	svc := services.NewSet(deps, tokens, cfg.Authz.DefaultRoleCode)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	r, routes := router.SetupRouter(router.Options{
		CORS:     cfg.CORS,
		Log:      appLogger,
		Metrics:  appMetrics,
		Gatherer: registry,
		JWT:      tokens,
		Roles:    authorityCache,
		Enforcer: store,
		Services: svc,
	})

	// 重建接口目录
	catalog, err := svc.Endpoint.SyncCatalog(ctx, routes)
	if err != nil {
		appLogger.Fatalf("Failed to sync endpoint catalog: %v", err)
	}
	appLogger.Infof("Endpoint catalog synced: +%d ~%d -%d", catalog.Inserted, catalog.Updated, catalog.Deleted)

	// 执行种子数据初始化
	seed := &seeder{cfg: cfg.Authz, repo: deps.Repo, svc: svc, log: appLogger}
	if err := seed.run(ctx); err != nil {
		appLogger.Fatalf("Failed to initialize seed data: %v", err)
	}

	// 启动时先对账一次，再按计划定时对账
	if _, err := svc.Sweeper.Sweep(ctx); err != nil {
		appLogger.Errorf("Initial policy sweep failed: %v", err)
	}
	if err := svc.Sweeper.Start(cfg.Authz.SweepCron); err != nil {
		appLogger.Fatalf("Failed to start policy sweeper: %v", err)
	}
	defer svc.Sweeper.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}
