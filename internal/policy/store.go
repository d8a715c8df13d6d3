// Package policy 封装授权策略存储。
//
// 策略元组的字段位置固定为 0=角色编码, 1=资源, 2=动作, 3=领域编码, 4=效果，
// 调用方按位置前缀过滤，不要调整顺序。
package policy

import (
	"context"
	"strings"

	"iamcore/internal/models"
)

// 字段位置
const (
	FieldRole     = 0
	FieldResource = 1
	FieldAction   = 2
	FieldDomain   = 3
)

// Tuple 一条授权策略
type Tuple struct {
	Role     string `json:"role"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Domain   string `json:"domain"`
	Effect   string `json:"effect"`
}

// NewTuple 创建允许类策略
func NewTuple(role, resource, action, domain string) Tuple {
	return Tuple{Role: role, Resource: resource, Action: action, Domain: domain, Effect: models.EffectAllow}
}

// Key 元组的唯一标识
func (t Tuple) Key() string {
	return strings.Join([]string{t.Role, t.Resource, t.Action, t.Domain, t.Effect}, "\x00")
}

// Store 策略存储协议
type Store interface {
	// GetFilteredPolicy 按字段位置前缀过滤，空字符串表示该位置不过滤；不传值返回全部策略
	GetFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) ([]Tuple, error)
	// AddPermission 为角色在领域下增加允许策略，已存在时不报错
	AddPermission(ctx context.Context, role, resource, action, domain string) error
	// RemoveFilteredPolicy 按字段位置前缀删除，至少需要一个过滤值
	RemoveFilteredPolicy(ctx context.Context, fieldIndex int, fieldValues ...string) error
	// Enforce 判断角色在领域下是否允许访问
	Enforce(ctx context.Context, role, resource, action, domain string) (bool, error)
}
