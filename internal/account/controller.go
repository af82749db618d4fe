package account

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/myltx/nestbase-go/internal/authz"
	"github.com/myltx/nestbase-go/internal/model"
	"github.com/myltx/nestbase-go/internal/permission"
	"github.com/myltx/nestbase-go/pkg/auth"
	"github.com/myltx/nestbase-go/pkg/dal"
	"github.com/myltx/nestbase-go/pkg/errors"
	"github.com/myltx/nestbase-go/pkg/response"
)

// Profile 当前用户信息
type Profile struct {
	UserID      int64    `json:"userId"`
	Username    string   `json:"username"`
	Nickname    string   `json:"nickname"`
	Avatar      string   `json:"avatar"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Controller 当前用户接口
type Controller struct {
	users *dal.BaseRepository[model.User]
	perms *permission.Resolver
}

// NewController 创建当前用户控制器
func NewController(db *gorm.DB, perms *permission.Resolver) *Controller {
	return &Controller{
		users: dal.NewBaseRepositoryWithDB[model.User](db),
		perms: perms,
	}
}

// RegisterRoutes 注册路由
func (c *Controller) RegisterRoutes(r fiber.Router, guard *authz.Guard) {
	authGroup := r.Group("/auth", guard.Middleware(authz.Rule{}))
	authGroup.Get("/permissions", c.Permissions)
	authGroup.Get("/profile", c.GetProfile)
}

// Permissions 当前用户持有的权限码（排序后的列表）
func (c *Controller) Permissions(ctx *fiber.Ctx) error {
	p := auth.GetPrincipal(ctx)

	codes, err := c.perms.ResolveUserPermissions(ctx.UserContext(), p.UserID)
	if err != nil {
		return response.Error(ctx, 500, err.Error())
	}
	return response.Success(ctx, codes)
}

// GetProfile 当前用户信息
func (c *Controller) GetProfile(ctx *fiber.Ctx) error {
	p := auth.GetPrincipal(ctx)

	user, err := c.users.FindByID(ctx.UserContext(), p.UserID)
	if err != nil {
		return response.Error(ctx, 500, err.Error())
	}
	if user == nil {
		return response.AppError(ctx, errors.NotFound("用户"))
	}

	codes, err := c.perms.ResolveUserPermissions(ctx.UserContext(), p.UserID)
	if err != nil {
		return response.Error(ctx, 500, err.Error())
	}

	return response.Success(ctx, Profile{
		UserID:      user.ID,
		Username:    user.Username,
		Nickname:    user.Nickname,
		Avatar:      user.Avatar,
		Roles:       p.RoleCodes,
		Permissions: codes,
	})
}
