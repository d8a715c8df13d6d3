package models

// Domain 领域（租户分区），策略授权按 Code 隔离
type Domain struct {
	BaseModel
	Code        string  `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Name        string  `json:"name" gorm:"not null;size:100"`
	Description *string `json:"description" gorm:"size:255"`
	Status      Status  `json:"status" gorm:"size:20;not null;default:ENABLED"`
}

// TableName 表名
func (Domain) TableName() string {
	return "sys_domain"
}
