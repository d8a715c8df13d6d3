package models

import (
	"golang.org/x/crypto/bcrypt"
)

// User 用户模型，Domain 为所属领域编码
type User struct {
	BaseModel
	Username     string  `json:"username" gorm:"uniqueIndex;not null;size:50"`
	PasswordHash string  `json:"-" gorm:"column:password;not null;size:255"`
	Domain       string  `json:"domain" gorm:"not null;size:50;index"`
	NickName     string  `json:"nickName" gorm:"not null;size:64"`
	Avatar       *string `json:"avatar" gorm:"size:255"`
	Email        *string `json:"email" gorm:"size:100"`
	PhoneNumber  *string `json:"phoneNumber" gorm:"size:20"`
	Status       Status  `json:"status" gorm:"size:20;not null;default:ENABLED"`
}

// TableName 表名
func (User) TableName() string {
	return "sys_user"
}

// SetPassword 设置密码 - 数据操作方法
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码 - 数据操作方法
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// IsEnabled 用户是否可用
func (u *User) IsEnabled() bool {
	return u.Status == StatusEnabled
}
