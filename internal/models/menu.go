package models

import (
	"time"

	"gorm.io/datatypes"
)

// RootMenuPID 顶级菜单的父ID
const RootMenuPID uint = 0

// 菜单类型
const (
	MenuTypeDirectory = "directory"
	MenuTypeMenu      = "menu"
)

// Menu 菜单（路由）树节点
type Menu struct {
	ID         uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	PID        uint           `json:"pid" gorm:"column:pid;not null;default:0;index"`
	MenuType   string         `json:"menuType" gorm:"size:20;not null"`
	MenuName   string         `json:"menuName" gorm:"size:64;not null"`
	RouteName  string         `json:"routeName" gorm:"size:64;not null;uniqueIndex"`
	RoutePath  string         `json:"routePath" gorm:"size:128;not null"`
	Component  string         `json:"component" gorm:"size:64;not null"`
	Icon       *string        `json:"icon" gorm:"size:64"`
	Order      int            `json:"order" gorm:"column:sort_order;not null;default:0"`
	Constant   bool           `json:"constant" gorm:"not null;default:false"`
	HideInMenu bool           `json:"hideInMenu" gorm:"not null;default:false"`
	KeepAlive  bool           `json:"keepAlive" gorm:"not null;default:false"`
	I18nKey    *string        `json:"i18nKey" gorm:"size:64"`
	Query      datatypes.JSON `json:"query"`
	Status     Status         `json:"status" gorm:"size:20;not null;default:ENABLED"`
	CreatedAt  time.Time      `json:"createdAt"`
	CreatedBy  string         `json:"createdBy" gorm:"size:36"`
	UpdatedAt  *time.Time     `json:"updatedAt"`
	UpdatedBy  *string        `json:"updatedBy" gorm:"size:36"`
}

// TableName 表名
func (Menu) TableName() string {
	return "sys_menu"
}
