package models

import (
	"time"
)

// BaseModel 基础模型，主键为不透明的字符串ID
type BaseModel struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time  `json:"createdAt"`
	CreatedBy string     `json:"createdBy" gorm:"size:36"`
	UpdatedAt *time.Time `json:"updatedAt"`
	UpdatedBy *string    `json:"updatedBy" gorm:"size:36"`
}

// Status 启用状态
type Status string

const (
	StatusEnabled  Status = "ENABLED"
	StatusDisabled Status = "DISABLED"
)

// Valid 是否为合法状态
func (s Status) Valid() bool {
	return s == StatusEnabled || s == StatusDisabled
}
