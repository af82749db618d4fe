package store

import (
	"context"

	"github.com/myltx/nestbase-go/internal/model"
	"gorm.io/gorm"
)

// Store 角色/权限/菜单只读查询接口
// 授权核心只依赖这组查询，查询失败会原样上抛（无法做出安全的授权决策）
type Store interface {
	FindEnabledRolesByCodes(ctx context.Context, codes []string) ([]model.Role, error)
	FindRoleMenus(ctx context.Context, roleIDs []int64) ([]model.RoleMenu, error)
	FindMenusByIDs(ctx context.Context, menuIDs []int64, enabledOnly bool) ([]model.Menu, error)
	FindConstantMenus(ctx context.Context) ([]model.Menu, error)
	FindRolePermissions(ctx context.Context, roleIDs []int64) ([]model.RolePermission, error)
	FindPermissionsByIDs(ctx context.Context, permissionIDs []int64, enabledOnly bool) ([]model.Permission, error)
	FindUserRoleIDs(ctx context.Context, userID int64) ([]int64, error)
}

// store 基于GORM的存储实现
type store struct {
	db *gorm.DB
}

// New 创建存储实例
func New(db *gorm.DB) Store {
	return &store{db: db}
}

// FindEnabledRolesByCodes 查询启用状态的角色，按 sort 稳定排序
func (s *store) FindEnabledRolesByCodes(ctx context.Context, codes []string) ([]model.Role, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	var roles []model.Role
	err := s.db.WithContext(ctx).
		Where("code IN ? AND status = ?", codes, model.StatusEnabled).
		Order("sort ASC, id ASC").
		Find(&roles).Error
	return roles, err
}

// FindRoleMenus 查询角色菜单关联
func (s *store) FindRoleMenus(ctx context.Context, roleIDs []int64) ([]model.RoleMenu, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	var joins []model.RoleMenu
	err := s.db.WithContext(ctx).
		Where("role_id IN ?", roleIDs).
		Find(&joins).Error
	return joins, err
}

// FindMenusByIDs 按ID查询菜单，按 order 升序
func (s *store) FindMenusByIDs(ctx context.Context, menuIDs []int64, enabledOnly bool) ([]model.Menu, error) {
	if len(menuIDs) == 0 {
		return nil, nil
	}

	db := s.db.WithContext(ctx).Where("id IN ?", menuIDs)
	if enabledOnly {
		db = db.Where("status = ?", model.StatusEnabled)
	}

	var menus []model.Menu
	err := db.Order("order_no ASC, id ASC").Find(&menus).Error
	return menus, err
}

// FindConstantMenus 查询启用状态的常量菜单（未登录可访问）
func (s *store) FindConstantMenus(ctx context.Context) ([]model.Menu, error) {
	var menus []model.Menu
	err := s.db.WithContext(ctx).
		Where("constant = ? AND status = ?", true, model.StatusEnabled).
		Order("order_no ASC, id ASC").
		Find(&menus).Error
	return menus, err
}

// FindRolePermissions 查询角色权限关联
func (s *store) FindRolePermissions(ctx context.Context, roleIDs []int64) ([]model.RolePermission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	var joins []model.RolePermission
	err := s.db.WithContext(ctx).
		Where("role_id IN ?", roleIDs).
		Find(&joins).Error
	return joins, err
}

// FindPermissionsByIDs 按ID查询权限
func (s *store) FindPermissionsByIDs(ctx context.Context, permissionIDs []int64, enabledOnly bool) ([]model.Permission, error) {
	if len(permissionIDs) == 0 {
		return nil, nil
	}

	db := s.db.WithContext(ctx).Where("id IN ?", permissionIDs)
	if enabledOnly {
		db = db.Where("status = ?", model.StatusEnabled)
	}

	var perms []model.Permission
	err := db.Find(&perms).Error
	return perms, err
}

// FindUserRoleIDs 查询用户持有的启用角色ID
// 禁用或已删除的角色不参与授权
func (s *store) FindUserRoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	var roleIDs []int64
	err := s.db.WithContext(ctx).
		Model(&model.UserRole{}).
		Joins("JOIN sys_role ON sys_role.id = sys_user_role.role_id").
		Where("sys_user_role.user_id = ? AND sys_role.status = ? AND sys_role.deleted_at IS NULL",
			userID, model.StatusEnabled).
		Pluck("sys_user_role.role_id", &roleIDs).Error
	return roleIDs, err
}
