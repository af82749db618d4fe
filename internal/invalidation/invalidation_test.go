package invalidation_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/myltx/nestbase-go/internal/invalidation"
	"github.com/myltx/nestbase-go/internal/menu"
	"github.com/myltx/nestbase-go/internal/model"
	"github.com/myltx/nestbase-go/internal/permission"
	"github.com/myltx/nestbase-go/internal/store"
	"github.com/myltx/nestbase-go/pkg/cache"
	"github.com/myltx/nestbase-go/pkg/dal"
)

// 测试数据：
//
//	角色 1（admin）：菜单 home，权限 user:read
//	用户 10：角色 1
func newTestNotifier(t *testing.T) (*invalidation.Notifier, *menu.Resolver, *permission.Resolver, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取连接池失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&model.Role{}, &model.Menu{}, &model.RoleMenu{},
		&model.Permission{}, &model.RolePermission{}, &model.UserRole{}); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}

	role := model.Role{Model: dal.Model{ID: 1}, Name: "管理员", Code: "admin", Home: "home", Status: model.StatusEnabled}
	menus := []model.Menu{
		{Model: dal.Model{ID: 1}, RouteName: "home", RoutePath: "/home", MenuName: "首页", Order: 1, Status: model.StatusEnabled},
	}
	perms := []model.Permission{
		{Model: dal.Model{ID: 1}, Name: "用户查询", Code: "user:read", Type: model.PermissionTypeAPI, Status: model.StatusEnabled},
	}
	for _, seed := range []interface{}{&role, &menus, &perms,
		&[]model.RoleMenu{{RoleID: 1, MenuID: 1}},
		&[]model.RolePermission{{RoleID: 1, PermissionID: 1}},
		&[]model.UserRole{{UserID: 10, RoleID: 1}}} {
		if err := db.Create(seed).Error; err != nil {
			t.Fatalf("写入测试数据失败: %v", err)
		}
	}

	st := store.New(db)
	c := cache.NewWithBackend(cache.NewMemoryBackend(0), "")
	menuResolver := menu.NewResolver(st, c, 300)
	permResolver := permission.NewResolver(st, c, 300)
	return invalidation.NewNotifier(menuResolver, permResolver, nil), menuResolver, permResolver, db
}

func TestRoutesChangedInvalidates(t *testing.T) {
	n, menus, _, db := newTestNotifier(t)
	ctx := context.Background()

	first, err := menus.ResolveRoutes(ctx, []string{"admin"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if len(first.Routes) != 1 {
		t.Fatalf("路由数 = %d, 期望 1", len(first.Routes))
	}

	if err := db.Where("1 = 1").Delete(&model.RoleMenu{}).Error; err != nil {
		t.Fatalf("清空角色菜单关联失败: %v", err)
	}

	// 通知前命中缓存，通知后重新解析
	stale, err := menus.ResolveRoutes(ctx, []string{"admin"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if len(stale.Routes) != 1 {
		t.Fatal("失效前应命中旧缓存")
	}

	n.RoutesChanged(ctx)

	fresh, err := menus.ResolveRoutes(ctx, []string{"admin"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if len(fresh.Routes) != 0 {
		t.Fatalf("失效后路由数 = %d, 期望 0", len(fresh.Routes))
	}
}

func TestPermissionsChangedInvalidatesUser(t *testing.T) {
	n, _, perms, db := newTestNotifier(t)
	ctx := context.Background()

	first, err := perms.ResolveUserPermissions(ctx, 10)
	if err != nil {
		t.Fatalf("解析用户权限失败: %v", err)
	}
	if !reflect.DeepEqual(first, []string{"user:read"}) {
		t.Fatalf("用户权限 = %v, 期望 [user:read]", first)
	}

	if err := db.Where("1 = 1").Delete(&model.UserRole{}).Error; err != nil {
		t.Fatalf("清空用户角色关联失败: %v", err)
	}

	n.PermissionsChanged(ctx, 10)

	fresh, err := perms.ResolveUserPermissions(ctx, 10)
	if err != nil {
		t.Fatalf("解析用户权限失败: %v", err)
	}
	if len(fresh) != 0 {
		t.Fatalf("失效后用户权限 = %v, 期望空", fresh)
	}
}

func TestRoleChangedInvalidatesBoth(t *testing.T) {
	n, menus, perms, db := newTestNotifier(t)
	ctx := context.Background()

	if _, err := menus.ResolveRoutes(ctx, []string{"admin"}); err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if _, err := perms.ResolveUserPermissions(ctx, 10); err != nil {
		t.Fatalf("解析用户权限失败: %v", err)
	}

	// 禁用角色后两类缓存都应重建
	if err := db.Model(&model.Role{}).Where("id = ?", 1).
		Update("status", model.StatusDisabled).Error; err != nil {
		t.Fatalf("禁用角色失败: %v", err)
	}

	n.RoleChanged(ctx)

	routes, err := menus.ResolveRoutes(ctx, []string{"admin"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if len(routes.Routes) != 0 {
		t.Fatalf("失效后路由数 = %d, 期望 0", len(routes.Routes))
	}

	userPerms, err := perms.ResolveUserPermissions(ctx, 10)
	if err != nil {
		t.Fatalf("解析用户权限失败: %v", err)
	}
	if len(userPerms) != 0 {
		t.Fatalf("失效后用户权限 = %v, 期望空", userPerms)
	}
}
