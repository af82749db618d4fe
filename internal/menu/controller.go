package menu

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/myltx/nestbase-go/internal/authz"
	"github.com/myltx/nestbase-go/internal/invalidation"
	"github.com/myltx/nestbase-go/internal/model"
	"github.com/myltx/nestbase-go/pkg/auth"
	"github.com/myltx/nestbase-go/pkg/dal"
	"github.com/myltx/nestbase-go/pkg/errors"
	"github.com/myltx/nestbase-go/pkg/response"
)

// Controller 菜单控制器
// 读取接口面向前端路由加载，管理接口面向后台菜单维护
type Controller struct {
	repo     Repository
	resolver *Resolver
	notifier *invalidation.Notifier
}

// NewController 创建菜单控制器
func NewController(repo Repository, resolver *Resolver, notifier *invalidation.Notifier) *Controller {
	return &Controller{
		repo:     repo,
		resolver: resolver,
		notifier: notifier,
	}
}

// RegisterRoutes 注册路由
func (c *Controller) RegisterRoutes(r fiber.Router, guard *authz.Guard) {
	menus := r.Group("/menus")

	// 公开接口按来源IP限流
	menus.Get("/constant-routes", guard.Middleware(authz.Rule{
		Public:    true,
		RateLimit: &authz.RateLimitRule{WindowSeconds: 60, Limit: 120},
	}), c.ConstantRoutes)
	menus.Get("/user-routes", guard.Middleware(authz.Rule{}), c.UserRoutes)
	menus.Get("/route-exists/:name", guard.Middleware(authz.Rule{}), c.RouteExists)

	admin := guard.Middleware(authz.Rule{Roles: []string{"R_SUPER", "R_ADMIN"}})
	menus.Post("", admin, c.Create)
	menus.Get("", admin, c.List)
	menus.Put("/:id", admin, c.Update)
	menus.Delete("/:id", admin, c.Delete)
}

// UserRoutes 当前用户的路由树与落地路由
func (c *Controller) UserRoutes(ctx *fiber.Ctx) error {
	p := auth.GetPrincipal(ctx)

	routes, err := c.resolver.ResolveRoutes(ctx.UserContext(), p.RoleCodes)
	if err != nil {
		return c.fail(ctx, err)
	}
	return response.Success(ctx, routes)
}

// ConstantRoutes 常量路由，未登录可访问
func (c *Controller) ConstantRoutes(ctx *fiber.Ctx) error {
	routes, err := c.resolver.ResolveConstantRoutes(ctx.UserContext())
	if err != nil {
		return c.fail(ctx, err)
	}
	return response.Success(ctx, routes)
}

// RouteExists 路由名对当前用户是否可见
func (c *Controller) RouteExists(ctx *fiber.Ctx) error {
	name := ctx.Params("name")
	if name == "" {
		return response.BadRequest(ctx, "无效的路由名")
	}

	p := auth.GetPrincipal(ctx)
	exists, err := c.resolver.RouteExists(ctx.UserContext(), p.RoleCodes, name)
	if err != nil {
		return c.fail(ctx, err)
	}
	return response.Success(ctx, exists)
}

// Create 创建菜单
func (c *Controller) Create(ctx *fiber.Ctx) error {
	var req CreateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return response.ValidateError(ctx, err.Error())
	}

	menu, err := c.create(ctx.UserContext(), &req)
	if err != nil {
		return c.fail(ctx, err)
	}
	return response.Success(ctx, menu)
}

func (c *Controller) create(ctx context.Context, req *CreateRequest) (*model.Menu, error) {
	if req.RouteName == "" || req.MenuName == "" {
		return nil, errors.Validation("路由名和菜单名不能为空")
	}

	existing, err := c.repo.FindByRouteName(ctx, req.RouteName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Duplicate("路由名")
	}

	menu := &model.Menu{
		RouteName:       req.RouteName,
		RoutePath:       req.RoutePath,
		MenuName:        req.MenuName,
		I18nKey:         req.I18nKey,
		Icon:            req.Icon,
		ParentID:        req.ParentID,
		Order:           req.Order,
		MenuType:        req.MenuType,
		Component:       req.Component,
		HideInMenu:      req.HideInMenu,
		ActiveMenu:      req.ActiveMenu,
		KeepAlive:       true,
		Constant:        req.Constant,
		FixedIndexInTab: req.FixedIndexInTab,
		Status:          req.Status,
	}
	if req.KeepAlive != nil {
		menu.KeepAlive = *req.KeepAlive
	}
	if menu.MenuType == 0 {
		menu.MenuType = model.MenuTypePage
	}
	if menu.Status == 0 {
		menu.Status = model.StatusEnabled
	}

	if err := c.repo.Create(ctx, menu); err != nil {
		return nil, err
	}

	c.notifier.RoutesChanged(ctx)
	return menu, nil
}

// List 菜单列表（扁平，按排序值升序）
func (c *Controller) List(ctx *fiber.Ctx) error {
	menus, err := c.repo.FindAll(ctx.UserContext(), nil, dal.WithOrder("order_no ASC, id ASC"))
	if err != nil {
		return c.fail(ctx, err)
	}
	return response.Success(ctx, menus)
}

// Update 更新菜单
func (c *Controller) Update(ctx *fiber.Ctx) error {
	id := paramID(ctx)
	if id == 0 {
		return response.BadRequest(ctx, "无效的菜单ID")
	}

	var req UpdateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return response.ValidateError(ctx, err.Error())
	}

	menu, err := c.update(ctx.UserContext(), id, &req)
	if err != nil {
		return c.fail(ctx, err)
	}
	return response.Success(ctx, menu)
}

func (c *Controller) update(ctx context.Context, id int64, req *UpdateRequest) (*model.Menu, error) {
	menu, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if menu == nil {
		return nil, errors.NotFound("菜单")
	}

	if req.RoutePath != "" {
		menu.RoutePath = req.RoutePath
	}
	if req.MenuName != "" {
		menu.MenuName = req.MenuName
	}
	if req.I18nKey != nil {
		menu.I18nKey = *req.I18nKey
	}
	if req.Icon != nil {
		menu.Icon = *req.Icon
	}
	if req.ActiveMenu != nil {
		menu.ActiveMenu = *req.ActiveMenu
	}
	if req.Component != nil {
		menu.Component = *req.Component
	}
	if req.ParentID != nil {
		menu.ParentID = *req.ParentID
	}
	if req.Order != nil {
		menu.Order = *req.Order
	}
	if req.MenuType != 0 {
		menu.MenuType = req.MenuType
	}
	if req.HideInMenu != nil {
		menu.HideInMenu = *req.HideInMenu
	}
	if req.KeepAlive != nil {
		menu.KeepAlive = *req.KeepAlive
	}
	if req.Constant != nil {
		menu.Constant = *req.Constant
	}
	if req.FixedIndexInTab != nil {
		menu.FixedIndexInTab = req.FixedIndexInTab
	}
	if req.Status != 0 {
		menu.Status = req.Status
	}

	if err := c.repo.Update(ctx, menu); err != nil {
		return nil, err
	}

	c.notifier.RoutesChanged(ctx)
	return menu, nil
}

// Delete 删除菜单
func (c *Controller) Delete(ctx *fiber.Ctx) error {
	id := paramID(ctx)
	if id == 0 {
		return response.BadRequest(ctx, "无效的菜单ID")
	}

	if err := c.delete(ctx.UserContext(), id); err != nil {
		return c.fail(ctx, err)
	}
	return response.Success(ctx, nil)
}

func (c *Controller) delete(ctx context.Context, id int64) error {
	menu, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if menu == nil {
		return errors.NotFound("菜单")
	}

	hasChildren, err := c.repo.HasChildren(ctx, id)
	if err != nil {
		return err
	}
	if hasChildren {
		return errors.BadRequest("存在子菜单，不允许删除")
	}

	if err := c.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := c.repo.ClearJoins(ctx, id); err != nil {
		return err
	}

	c.notifier.RoutesChanged(ctx)
	return nil
}

// fail 统一错误出口
func (c *Controller) fail(ctx *fiber.Ctx, err error) error {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return response.AppError(ctx, appErr)
	}
	return response.Error(ctx, 500, err.Error())
}

func paramID(ctx *fiber.Ctx) int64 {
	id, _ := strconv.ParseInt(ctx.Params("id"), 10, 64)
	return id
}
