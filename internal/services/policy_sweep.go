package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"iamcore/internal/policy"
	"iamcore/internal/repository"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// SweepResult 一次对账的结果
type SweepResult struct {
	OrphansRemoved int64    `json:"orphansRemoved"`
	PolicyAdded    int      `json:"policyAdded"`
	PolicyRemoved  int      `json:"policyRemoved"`
	Resolved       []string `json:"resolved"` // 本次对账覆盖的待处理范围
}

// PolicySweeper 以关系库为准修复策略存储，并清理孤儿关联行
//
// 幂等；并发调用合并为一次执行。
type PolicySweeper struct {
	Deps

	group singleflight.Group

	mu      sync.Mutex
	pending map[string]struct{}

	cron    *cron.Cron
	running bool
}

func NewPolicySweeper(deps Deps) *PolicySweeper {
	return &PolicySweeper{
		Deps:    deps,
		pending: make(map[string]struct{}),
	}
}

// MarkDivergent 标记待对账的范围
func (s *PolicySweeper) MarkDivergent(scope string) {
	s.mu.Lock()
	s.pending[scope] = struct{}{}
	s.mu.Unlock()
}

// Pending 当前待对账的范围
func (s *PolicySweeper) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	scopes := make([]string, 0, len(s.pending))
	for scope := range s.pending {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}

// Sweep 执行一次对账，与正在进行的对账合并
func (s *PolicySweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	v, err, _ := s.group.Do("sweep", func() (interface{}, error) {
		unlock := s.Locks.Exclusive()
		defer unlock()

		start := time.Now()
		result, err := s.sweep(ctx)
		s.Metrics.RecordSweep(err, time.Since(start))
		return result, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*SweepResult), nil
}

func (s *PolicySweeper) sweep(ctx context.Context) (*SweepResult, error) {
	resolved := s.takePending()
	result := &SweepResult{Resolved: resolved}
	fail := func(err error) (*SweepResult, error) {
		for _, scope := range resolved {
			s.MarkDivergent(scope)
		}
		return nil, err
	}

	var grants []repository.Grant
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.Repo.Transaction(txCtx, func(tx *repository.RelationRepository) error {
		counts, err := tx.DeleteOrphans(txCtx)
		if err != nil {
			return err
		}
		result.OrphansRemoved = counts.Total()
		s.Metrics.RecordMutations("role_menu", 0, int(counts.RoleMenus))
		s.Metrics.RecordMutations("user_role", 0, int(counts.UserRoles))
		s.Metrics.RecordMutations("role_permission", 0, int(counts.RolePermissions))

		grants, err = tx.PermissionGrants(txCtx)
		return err
	})
	if err != nil {
		return fail(err)
	}

	desired := make(map[string]policy.Tuple, len(grants))
	for _, g := range grants {
		t := policy.NewTuple(g.RoleCode, g.Resource, g.Action, g.Domain)
		desired[t.Key()] = t
	}

	existing, err := s.Store.GetFilteredPolicy(ctx, policy.FieldRole)
	if err != nil {
		return fail(err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		have[t.Key()] = struct{}{}
		if _, ok := desired[t.Key()]; ok {
			continue
		}
		if err := s.Store.RemoveFilteredPolicy(ctx, policy.FieldRole, t.Role, t.Resource, t.Action, t.Domain, t.Effect); err != nil {
			return fail(err)
		}
		result.PolicyRemoved++
	}

	keys := make([]string, 0, len(desired))
	for k := range desired {
		if _, ok := have[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		t := desired[k]
		if err := s.Store.AddPermission(ctx, t.Role, t.Resource, t.Action, t.Domain); err != nil {
			return fail(err)
		}
		result.PolicyAdded++
	}
	s.Metrics.RecordPolicyMutations(result.PolicyAdded, result.PolicyRemoved)

	s.Log.WithFields(logrus.Fields{
		"orphans":        result.OrphansRemoved,
		"policy_added":   result.PolicyAdded,
		"policy_removed": result.PolicyRemoved,
		"resolved":       len(resolved),
	}).Info("策略对账完成")
	return result, nil
}

func (s *PolicySweeper) takePending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	scopes := make([]string, 0, len(s.pending))
	for scope := range s.pending {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	s.pending = make(map[string]struct{})
	return scopes
}

// Start 按cron表达式定时对账，表达式为空时不启动
func (s *PolicySweeper) Start(expr string) error {
	if expr == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("策略对账调度器已经在运行")
	}

	c := cron.New()
	if _, err := c.AddFunc(expr, s.runScheduled); err != nil {
		return fmt.Errorf("无效的cron表达式 %s: %w", expr, err)
	}
	c.Start()
	s.cron = c
	s.running = true

	s.Log.Infof("策略对账调度器启动成功，cron: %s", expr)
	return nil
}

func (s *PolicySweeper) runScheduled() {
	if _, err := s.Sweep(context.Background()); err != nil {
		s.Log.WithError(err).Error("定时策略对账失败")
	}
}

// Stop 停止调度器并等待正在执行的对账结束
func (s *PolicySweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.cron
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
	s.Log.Info("策略对账调度器已停止")
}
