package models

// RootRolePID 根角色的父ID
const RootRolePID = "0"

// Role 角色模型，全局唯一；菜单和权限的授予按领域隔离
type Role struct {
	BaseModel
	Code        string  `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Name        string  `json:"name" gorm:"not null;size:100"`
	PID         string  `json:"pid" gorm:"column:pid;not null;size:36;default:'0'"`
	Status      Status  `json:"status" gorm:"size:20;not null;default:ENABLED"`
	Description *string `json:"description" gorm:"size:255"`
}

// TableName 表名
func (Role) TableName() string {
	return "sys_role"
}

// RoleMenu 角色-菜单关联表，(role_id, menu_id, domain) 联合唯一
type RoleMenu struct {
	RoleID string `json:"roleId" gorm:"primaryKey;size:36"`
	MenuID uint   `json:"menuId" gorm:"primaryKey;autoIncrement:false"`
	Domain string `json:"domain" gorm:"primaryKey;size:50;index"`
}

// TableName 表名
func (RoleMenu) TableName() string {
	return "sys_role_menu"
}

// UserRole 用户-角色关联表，与领域无关
type UserRole struct {
	UserID string `json:"userId" gorm:"primaryKey;size:36"`
	RoleID string `json:"roleId" gorm:"primaryKey;size:36;index"`
}

// TableName 表名
func (UserRole) TableName() string {
	return "sys_user_role"
}
