package role

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/myltx/nestbase-go/internal/authz"
	"github.com/myltx/nestbase-go/internal/invalidation"
	"github.com/myltx/nestbase-go/internal/model"
	"github.com/myltx/nestbase-go/pkg/dal"
	"github.com/myltx/nestbase-go/pkg/errors"
	"github.com/myltx/nestbase-go/pkg/response"
)

// Controller 角色控制器
type Controller struct {
	repo        Repository
	assignments AssignmentRepository
	notifier    *invalidation.Notifier
}

// NewController 创建角色控制器
func NewController(repo Repository, assignments AssignmentRepository, notifier *invalidation.Notifier) *Controller {
	return &Controller{
		repo:        repo,
		assignments: assignments,
		notifier:    notifier,
	}
}

// RegisterRoutes 注册路由
func (c *Controller) RegisterRoutes(r fiber.Router, guard *authz.Guard) {
	admin := guard.Middleware(authz.Rule{Roles: []string{"R_SUPER", "R_ADMIN"}})

	roles := r.Group("/roles", admin)
	roles.Post("", c.Create)
	roles.Get("", c.List)
	roles.Get("/:id", c.Get)
	roles.Put("/:id", c.Update)
	roles.Delete("/:id", c.Delete)
	roles.Put("/:id/menus", c.SetMenus)
	roles.Put("/:id/permissions", c.SetPermissions)

	users := r.Group("/users", admin)
	users.Put("/:id/roles", c.SetUserRoles)
}

// Create 创建角色
func (c *Controller) Create(ctx *fiber.Ctx) error {
	var req CreateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return response.ValidateError(ctx, err.Error())
	}

	role, err := c.create(ctx.UserContext(), &req)
	if err != nil {
		return c.fail(ctx, err)
	}
	return response.Success(ctx, role)
}

func (c *Controller) create(ctx context.Context, req *CreateRequest) (*model.Role, error) {
	if req.Name == "" || req.Code == "" {
		return nil, errors.Validation("名称和编码不能为空")
	}

	existing, err := c.repo.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Duplicate("角色编码")
	}

	role := &model.Role{
		Name:        req.Name,
		Code:        req.Code,
		Home:        normalizeHome(req.Home),
		Status:      req.Status,
		Sort:        req.Sort,
		Description: req.Description,
	}
	if role.Status == 0 {
		role.Status = model.StatusEnabled
	}

	if err := c.repo.Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// List 角色列表
func (c *Controller) List(ctx *fiber.Ctx) error {
	roles, err := c.repo.FindAll(ctx.UserContext(), nil, dal.WithOrder("sort ASC, id ASC"))
	if err != nil {
		return c.fail(ctx, err)
	}
	return response.Success(ctx, roles)
}

// Get 角色详情
func (c *Controller) Get(ctx *fiber.Ctx) error {
	id := paramID(ctx)
	if id == 0 {
		return response.BadRequest(ctx, "无效的角色ID")
	}

	role, err := c.repo.FindByID(ctx.UserContext(), id)
	if err != nil {
		return c.fail(ctx, err)
	}
	if role == nil {
		return response.NotFound(ctx, "角色不存在")
	}
	return response.Success(ctx, role)
}

// Update 更新角色
func (c *Controller) Update(ctx *fiber.Ctx) error {
	id := paramID(ctx)
	if id == 0 {
		return response.BadRequest(ctx, "无效的角色ID")
	}

	var req UpdateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return response.ValidateError(ctx, err.Error())
	}

	role, err := c.update(ctx.UserContext(), id, &req)
	if err != nil {
		return c.fail(ctx, err)
	}
	return response.Success(ctx, role)
}

func (c *Controller) update(ctx context.Context, id int64, req *UpdateRequest) (*model.Role, error) {
	role, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, errors.NotFound("角色")
	}

	if req.Code != "" && req.Code != role.Code {
		if role.IsSystem {
			return nil, errors.New(403, "系统内置角色不允许修改编码")
		}
		existing, err := c.repo.FindByCode(ctx, req.Code)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, errors.Duplicate("角色编码")
		}
		role.Code = req.Code
	}

	if req.Name != "" {
		role.Name = req.Name
	}
	if req.Home != "" {
		role.Home = normalizeHome(req.Home)
	}
	if req.Status != 0 {
		role.Status = req.Status
	}
	if req.Sort != nil {
		role.Sort = *req.Sort
	}
	if req.Description != nil {
		role.Description = *req.Description
	}

	if err := c.repo.Update(ctx, role); err != nil {
		return nil, err
	}

	// 状态、编码、排序、落地路由都会影响解析结果，更新一律全量失效
	c.notifier.RoleChanged(ctx)
	return role, nil
}

// Delete 删除角色
func (c *Controller) Delete(ctx *fiber.Ctx) error {
	id := paramID(ctx)
	if id == 0 {
		return response.BadRequest(ctx, "无效的角色ID")
	}

	if err := c.delete(ctx.UserContext(), id); err != nil {
		return c.fail(ctx, err)
	}
	return response.Success(ctx, nil)
}

func (c *Controller) delete(ctx context.Context, id int64) error {
	role, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if role == nil {
		return errors.NotFound("角色")
	}
	if role.IsSystem {
		return errors.New(403, "系统内置角色不允许删除")
	}

	if err := c.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := c.assignments.ClearRole(ctx, id); err != nil {
		return err
	}

	c.notifier.RoleChanged(ctx)
	return nil
}

// SetMenus 设置角色菜单
func (c *Controller) SetMenus(ctx *fiber.Ctx) error {
	id := paramID(ctx)
	if id == 0 {
		return response.BadRequest(ctx, "无效的角色ID")
	}

	var req SetMenusRequest
	if err := ctx.BodyParser(&req); err != nil {
		return response.ValidateError(ctx, err.Error())
	}

	uctx := ctx.UserContext()
	if err := c.assignments.ReplaceRoleMenus(uctx, id, req.MenuIDs); err != nil {
		return c.fail(ctx, err)
	}

	c.notifier.RoutesChanged(uctx)
	return response.Success(ctx, nil)
}

// SetPermissions 设置角色权限
func (c *Controller) SetPermissions(ctx *fiber.Ctx) error {
	id := paramID(ctx)
	if id == 0 {
		return response.BadRequest(ctx, "无效的角色ID")
	}

	var req SetPermissionsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return response.ValidateError(ctx, err.Error())
	}

	uctx := ctx.UserContext()
	if err := c.assignments.ReplaceRolePermissions(uctx, id, req.PermissionIDs); err != nil {
		return c.fail(ctx, err)
	}

	// 持有该角色的用户权限缓存全部失效
	userIDs, err := c.assignments.FindUserIDsByRole(uctx, id)
	if err != nil {
		return c.fail(ctx, err)
	}
	c.notifier.PermissionsChanged(uctx, userIDs...)

	return response.Success(ctx, nil)
}

// SetUserRoles 设置用户角色
func (c *Controller) SetUserRoles(ctx *fiber.Ctx) error {
	userID := paramID(ctx)
	if userID == 0 {
		return response.BadRequest(ctx, "无效的用户ID")
	}

	var req SetUserRolesRequest
	if err := ctx.BodyParser(&req); err != nil {
		return response.ValidateError(ctx, err.Error())
	}

	uctx := ctx.UserContext()
	if err := c.assignments.ReplaceUserRoles(uctx, userID, req.RoleIDs); err != nil {
		return c.fail(ctx, err)
	}

	c.notifier.PermissionsChanged(uctx, userID)
	return response.Success(ctx, nil)
}

// fail 统一错误出口：应用错误透传原因码，其余按服务器错误处理
func (c *Controller) fail(ctx *fiber.Ctx, err error) error {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return response.AppError(ctx, appErr)
	}
	return response.Error(ctx, 500, err.Error())
}

// normalizeHome 落地路由存储时不带前导斜杠
func normalizeHome(home string) string {
	home = strings.TrimSpace(home)
	home = strings.TrimPrefix(home, "/")
	if home == "" {
		return "home"
	}
	return home
}

func paramID(ctx *fiber.Ctx) int64 {
	id, _ := strconv.ParseInt(ctx.Params("id"), 10, 64)
	return id
}
