package policy

import (
	"context"
	"fmt"
	"time"

	apperrors "iamcore/pkg/errors"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

// ModelText 角色+领域模型，主体直接是角色编码
const ModelText = `
[request_definition]
r = sub, obj, act, dom

[policy_definition]
p = sub, obj, act, dom, eft

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act && r.dom == p.dom
`

// CasbinStore 基于casbin的策略存储
type CasbinStore struct {
	enforcer *casbin.SyncedEnforcer
	timeout  time.Duration
}

// NewCasbinStore 使用gorm适配器把策略持久化到 casbin_rule 表
func NewCasbinStore(db *gorm.DB, timeout time.Duration) (*CasbinStore, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("创建casbin适配器失败: %w", err)
	}
	m, err := model.NewModelFromString(ModelText)
	if err != nil {
		return nil, fmt.Errorf("加载casbin模型失败: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("创建casbin执行器失败: %w", err)
	}
	return &CasbinStore{enforcer: enforcer, timeout: timeout}, nil
}

// NewMemoryStore 不落库的策略存储
func NewMemoryStore(timeout time.Duration) (*CasbinStore, error) {
	m, err := model.NewModelFromString(ModelText)
	if err != nil {
		return nil, fmt.Errorf("加载casbin模型失败: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("创建casbin执行器失败: %w", err)
	}
	return &CasbinStore{enforcer: enforcer, timeout: timeout}, nil
}

// Reload 从适配器重新加载全部策略
func (s *CasbinStore) Reload(ctx context.Context) error {
	return s.do(ctx, "加载策略", func() error {
		return s.enforcer.LoadPolicy()
	})
}

func (s *CasbinStore) GetFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) ([]Tuple, error) {
	var rules [][]string
	err := s.do(ctx, "查询策略", func() error {
		var err error
		rules, err = s.enforcer.GetFilteredPolicy(fieldIndex, fieldValues...)
		return err
	})
	if err != nil {
		return nil, err
	}

	tuples := make([]Tuple, 0, len(rules))
	for _, rule := range rules {
		tuples = append(tuples, toTuple(rule))
	}
	return tuples, nil
}

func (s *CasbinStore) AddPermission(ctx context.Context, role, resource, action, domain string) error {
	t := NewTuple(role, resource, action, domain)
	return s.do(ctx, "新增策略", func() error {
		_, err := s.enforcer.AddPolicy(t.Role, t.Resource, t.Action, t.Domain, t.Effect)
		return err
	})
}

func (s *CasbinStore) RemoveFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) error {
	if len(fieldValues) == 0 {
		return apperrors.Invalid("删除策略至少需要一个过滤条件")
	}
	return s.do(ctx, "删除策略", func() error {
		_, err := s.enforcer.RemoveFilteredPolicy(fieldIndex, fieldValues...)
		return err
	})
}

func (s *CasbinStore) Enforce(ctx context.Context, role, resource, action, domain string) (bool, error) {
	var allowed bool
	err := s.do(ctx, "策略校验", func() error {
		var err error
		allowed, err = s.enforcer.Enforce(role, resource, action, domain)
		return err
	})
	return allowed, err
}

// do 给不支持context的casbin调用加上超时，超时或失败统一视为可重试错误
func (s *CasbinStore) do(ctx context.Context, op string, fn func() error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		if err != nil {
			return apperrors.Transient(op, err)
		}
		return nil
	case <-ctx.Done():
		return apperrors.Transient(op, ctx.Err())
	}
}

func toTuple(rule []string) Tuple {
	field := func(i int) string {
		if i < len(rule) {
			return rule[i]
		}
		return ""
	}
	t := Tuple{
		Role:     field(FieldRole),
		Resource: field(FieldResource),
		Action:   field(FieldAction),
		Domain:   field(FieldDomain),
		Effect:   field(4),
	}
	if t.Effect == "" {
		t.Effect = "allow"
	}
	return t
}
