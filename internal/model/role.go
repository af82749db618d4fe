package model

import (
	"github.com/myltx/nestbase-go/pkg/dal"
)

// 通用启用状态
const (
	StatusEnabled  int8 = 1
	StatusDisabled int8 = 2
)

// Role 角色模型
// Code 全局唯一且不会被复用；Home 为默认落地路由，存储时不带前导斜杠
type Role struct {
	dal.Model
	Name        string `gorm:"size:50;not null" json:"name"`
	Code        string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Home        string `gorm:"size:255;default:home" json:"home"`
	Status      int8   `gorm:"default:1" json:"status"`
	IsSystem    bool   `gorm:"default:false" json:"isSystem"`
	Sort        int    `gorm:"default:0" json:"sort"`
	Description string `gorm:"size:255" json:"description"`
}

// TableName 表名
func (Role) TableName() string {
	return "sys_role"
}

// Enabled 角色是否启用
func (r *Role) Enabled() bool {
	return r.Status == StatusEnabled
}

// RoleMenu 角色菜单关联
type RoleMenu struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RoleID int64 `gorm:"index:idx_role_menu;not null" json:"roleId"`
	MenuID int64 `gorm:"index:idx_role_menu;not null" json:"menuId"`
}

// TableName 表名
func (RoleMenu) TableName() string {
	return "sys_role_menu"
}

// UserRole 用户角色关联
type UserRole struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"index:idx_user_role;not null" json:"userId"`
	RoleID int64 `gorm:"index:idx_user_role;not null" json:"roleId"`
}

// TableName 表名
func (UserRole) TableName() string {
	return "sys_user_role"
}
