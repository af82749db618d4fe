package model

import (
	"github.com/myltx/nestbase-go/pkg/dal"
)

// 权限类型
const (
	PermissionTypeMenu   = "MENU"
	PermissionTypeButton = "BUTTON"
	PermissionTypeAPI    = "API"
)

// Permission 权限模型
// MenuID 将按钮/API权限挂到暴露它的菜单上，可为空
type Permission struct {
	dal.Model
	Name        string `gorm:"size:50;not null" json:"name"`
	Code        string `gorm:"size:100;uniqueIndex;not null" json:"code"`
	Type        string `gorm:"size:20;default:API" json:"type"`
	Status      int8   `gorm:"default:1" json:"status"`
	MenuID      *int64 `gorm:"index" json:"menuId,omitempty"`
	Description string `gorm:"size:255" json:"description"`
}

// TableName 表名
func (Permission) TableName() string {
	return "sys_permission"
}

// Enabled 权限是否启用
func (p *Permission) Enabled() bool {
	return p.Status == StatusEnabled
}

// RolePermission 角色权限关联
type RolePermission struct {
	ID           int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RoleID       int64 `gorm:"index:idx_role_perm;not null" json:"roleId"`
	PermissionID int64 `gorm:"index:idx_role_perm;not null" json:"permissionId"`
}

// TableName 表名
func (RolePermission) TableName() string {
	return "sys_role_permission"
}
