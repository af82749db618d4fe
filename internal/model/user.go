package model

import (
	"github.com/myltx/nestbase-go/pkg/dal"
)

// User 用户模型
// 认证流程不在本服务范围内，这里仅保留授权解析需要的字段
type User struct {
	dal.Model
	Username string `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email    string `gorm:"size:100;uniqueIndex" json:"email"`
	Nickname string `gorm:"size:50" json:"nickname"`
	Avatar   string `gorm:"size:255" json:"avatar"`
	Status   int8   `gorm:"default:1" json:"status"`
}

// TableName 表名
func (User) TableName() string {
	return "sys_user"
}
