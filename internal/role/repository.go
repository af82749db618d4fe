package role

import (
	"context"

	"gorm.io/gorm"

	"github.com/myltx/nestbase-go/internal/model"
	"github.com/myltx/nestbase-go/pkg/dal"
)

// Repository 角色仓储接口
type Repository interface {
	dal.Repository[model.Role]
	FindByCode(ctx context.Context, code string) (*model.Role, error)
}

// repository 角色仓储实现
type repository struct {
	*dal.BaseRepository[model.Role]
}

// NewRepository 创建角色仓储
func NewRepository(db *gorm.DB) Repository {
	return &repository{
		BaseRepository: dal.NewBaseRepositoryWithDB[model.Role](db),
	}
}

// FindByCode 根据编码查找
func (r *repository) FindByCode(ctx context.Context, code string) (*model.Role, error) {
	return r.FindOne(ctx, map[string]interface{}{"code": code})
}

// AssignmentRepository 角色关联仓储
// 三张关联表的整替换操作，替换在事务内完成
type AssignmentRepository interface {
	ReplaceRoleMenus(ctx context.Context, roleID int64, menuIDs []int64) error
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	FindUserIDsByRole(ctx context.Context, roleID int64) ([]int64, error)
	ClearRole(ctx context.Context, roleID int64) error
}

// assignmentRepository 角色关联仓储实现
type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository 创建角色关联仓储
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

// ReplaceRoleMenus 整替换角色的菜单授权
func (r *assignmentRepository) ReplaceRoleMenus(ctx context.Context, roleID int64, menuIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&model.RoleMenu{}).Error; err != nil {
			return err
		}
		if len(menuIDs) == 0 {
			return nil
		}
		joins := make([]model.RoleMenu, len(menuIDs))
		for i, id := range menuIDs {
			joins[i] = model.RoleMenu{RoleID: roleID, MenuID: id}
		}
		return tx.CreateInBatches(joins, 100).Error
	})
}

// ReplaceRolePermissions 整替换角色的权限授权
func (r *assignmentRepository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&model.RolePermission{}).Error; err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		joins := make([]model.RolePermission, len(permissionIDs))
		for i, id := range permissionIDs {
			joins[i] = model.RolePermission{RoleID: roleID, PermissionID: id}
		}
		return tx.CreateInBatches(joins, 100).Error
	})
}

// ReplaceUserRoles 整替换用户的角色
func (r *assignmentRepository) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserRole{}).Error; err != nil {
			return err
		}
		if len(roleIDs) == 0 {
			return nil
		}
		joins := make([]model.UserRole, len(roleIDs))
		for i, id := range roleIDs {
			joins[i] = model.UserRole{UserID: userID, RoleID: id}
		}
		return tx.CreateInBatches(joins, 100).Error
	})
}

// FindUserIDsByRole 查询持有角色的用户ID
func (r *assignmentRepository) FindUserIDsByRole(ctx context.Context, roleID int64) ([]int64, error) {
	var userIDs []int64
	err := r.db.WithContext(ctx).
		Model(&model.UserRole{}).
		Where("role_id = ?", roleID).
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

// ClearRole 删除角色的全部关联（删除角色时随事务清理）
func (r *assignmentRepository) ClearRole(ctx context.Context, roleID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&model.RoleMenu{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", roleID).Delete(&model.RolePermission{}).Error; err != nil {
			return err
		}
		return tx.Where("role_id = ?", roleID).Delete(&model.UserRole{}).Error
	})
}
