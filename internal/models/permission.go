package models

import "time"

// Endpoint 接口目录，启动时由路由表重建，不可手工编辑
type Endpoint struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	Path       string     `json:"path" gorm:"not null;size:255"`
	Method     string     `json:"method" gorm:"not null;size:10"`
	Action     string     `json:"action" gorm:"not null;size:50"`
	Resource   string     `json:"resource" gorm:"not null;size:100;index"`
	Controller string     `json:"controller" gorm:"not null;size:100"`
	Summary    *string    `json:"summary" gorm:"size:255"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt"`
}

// TableName 表名
func (Endpoint) TableName() string {
	return "sys_endpoint"
}

// SameAs 比较目录字段是否一致（忽略时间戳）
func (e Endpoint) SameAs(o Endpoint) bool {
	summary := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return e.Path == o.Path && e.Method == o.Method && e.Action == o.Action &&
		e.Resource == o.Resource && e.Controller == o.Controller && summary(e.Summary) == summary(o.Summary)
}

// RolePermission 角色在某领域下被授予的接口权限，是策略存储的关系型真相
type RolePermission struct {
	RoleID     string `json:"roleId" gorm:"primaryKey;size:36"`
	EndpointID string `json:"endpointId" gorm:"primaryKey;size:36;index"`
	Domain     string `json:"domain" gorm:"primaryKey;size:50;index"`
}

// TableName 表名
func (RolePermission) TableName() string {
	return "sys_role_permission"
}

// 策略效果
const EffectAllow = "allow"
