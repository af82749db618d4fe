package menu

import (
	"context"

	"gorm.io/gorm"

	"github.com/myltx/nestbase-go/internal/model"
	"github.com/myltx/nestbase-go/pkg/dal"
)

// Repository 菜单仓储接口
type Repository interface {
	dal.Repository[model.Menu]
	FindByRouteName(ctx context.Context, routeName string) (*model.Menu, error)
	HasChildren(ctx context.Context, menuID int64) (bool, error)
	ClearJoins(ctx context.Context, menuID int64) error
}

// repository 菜单仓储实现
type repository struct {
	*dal.BaseRepository[model.Menu]
}

// NewRepository 创建菜单仓储
func NewRepository(db *gorm.DB) Repository {
	return &repository{
		BaseRepository: dal.NewBaseRepositoryWithDB[model.Menu](db),
	}
}

// FindByRouteName 根据路由名查找
func (r *repository) FindByRouteName(ctx context.Context, routeName string) (*model.Menu, error) {
	return r.FindOne(ctx, map[string]interface{}{"route_name": routeName})
}

// HasChildren 是否存在子菜单
func (r *repository) HasChildren(ctx context.Context, menuID int64) (bool, error) {
	count, err := r.Count(ctx, map[string]interface{}{"parent_id": menuID})
	return count > 0, err
}

// ClearJoins 删除菜单的全部角色关联
func (r *repository) ClearJoins(ctx context.Context, menuID int64) error {
	return r.DB().WithContext(ctx).
		Where("menu_id = ?", menuID).
		Delete(&model.RoleMenu{}).Error
}
