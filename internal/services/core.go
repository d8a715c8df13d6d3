package services

import (
	"context"
	"time"

	"iamcore/internal/policy"
	"iamcore/internal/repository"
	"iamcore/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// AuthorityCache 会话角色缓存
type AuthorityCache interface {
	Refresh(ctx context.Context, userID string, roles []string, ttl time.Duration) error
	Replace(ctx context.Context, userID string, roles []string) error
	Invalidate(ctx context.Context, userIDs ...string) error
	Read(ctx context.Context, userID string) ([]string, error)
}

// DivergenceMarker 记录关系已提交但策略未同步的范围，由对账补齐
type DivergenceMarker interface {
	MarkDivergent(scope string)
}

// Deps 授权核心各服务的公共依赖
type Deps struct {
	Repo    *repository.RelationRepository
	Store   policy.Store
	Cache   AuthorityCache
	Locks   *ScopeLocks
	Metrics *metrics.Metrics
	Log     *logrus.Logger
	// Timeout 单次关系库事务的超时
	Timeout time.Duration
	// Divergence 可为空
	Divergence DivergenceMarker
}

func (d Deps) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.Timeout)
}

// diverged 策略或缓存步骤失败：记日志、计数、标记待对账，调用本身仍返回成功
func (d Deps) diverged(operation, scope string, err error) {
	d.Log.WithFields(logrus.Fields{
		"operation": operation,
		"scope":     scope,
	}).WithError(err).Error("事务已提交但策略同步失败，等待对账")
	d.Metrics.RecordDivergence(operation)
	if d.Divergence != nil {
		d.Divergence.MarkDivergent(scope)
	}
}
