package menu

import (
	"context"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/myltx/nestbase-go/internal/model"
	"github.com/myltx/nestbase-go/internal/store"
	"github.com/myltx/nestbase-go/pkg/cache"
	"github.com/myltx/nestbase-go/pkg/dal"
)

func newTestDB(t *testing.T) *gorm.DB {
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
	if err := db.AutoMigrate(&model.Role{}, &model.Menu{}, &model.RoleMenu{}); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}
	return db
}

// 测试数据：
//
//	home(1)                       启用页面
//	manage(2)                     启用目录
//	  ├─ manage_user(3)          启用页面
//	  ├─ manage_role(4)          隐藏叶子，应被剪掉
//	  └─ manage_log(9)           禁用，不应出现
//	orphan(5)                     父节点 999 不存在，按根处理
//	wrapper(6)                    隐藏目录，但有可见子节点，应保留
//	  └─ wrapper_child(7)
//	login(8)                      常量路由，未登录可见
func seedMenus(t *testing.T, db *gorm.DB) {
	t.Helper()
	roles := []model.Role{
		{Model: dal.Model{ID: 1}, Name: "管理员", Code: "admin", Home: "dashboard", Status: model.StatusEnabled, Sort: 1},
		{Model: dal.Model{ID: 2}, Name: "编辑", Code: "editor", Home: "home", Status: model.StatusEnabled, Sort: 2},
		{Model: dal.Model{ID: 3}, Name: "停用角色", Code: "retired", Home: "home", Status: model.StatusDisabled, Sort: 3},
	}
	menus := []model.Menu{
		{Model: dal.Model{ID: 1}, RouteName: "home", RoutePath: "/home", MenuName: "首页", Order: 1, Status: model.StatusEnabled, KeepAlive: true},
		{Model: dal.Model{ID: 2}, RouteName: "manage", RoutePath: "/manage", MenuName: "系统管理", MenuType: model.MenuTypeDirectory, Order: 2, Status: model.StatusEnabled},
		{Model: dal.Model{ID: 3}, RouteName: "manage_user", RoutePath: "/manage/user", MenuName: "用户管理", ParentID: 2, Order: 1, Status: model.StatusEnabled},
		{Model: dal.Model{ID: 4}, RouteName: "manage_role", RoutePath: "/manage/role", MenuName: "角色管理", ParentID: 2, Order: 2, HideInMenu: true, Status: model.StatusEnabled},
		{Model: dal.Model{ID: 5}, RouteName: "orphan", RoutePath: "/orphan", MenuName: "孤儿节点", ParentID: 999, Order: 3, Status: model.StatusEnabled},
		{Model: dal.Model{ID: 6}, RouteName: "wrapper", RoutePath: "/wrapper", MenuName: "隐藏目录", MenuType: model.MenuTypeDirectory, HideInMenu: true, Order: 4, Status: model.StatusEnabled},
		{Model: dal.Model{ID: 7}, RouteName: "wrapper_child", RoutePath: "/wrapper/child", MenuName: "可见子节点", ParentID: 6, Order: 1, Status: model.StatusEnabled},
		{Model: dal.Model{ID: 8}, RouteName: "login", RoutePath: "/login", MenuName: "登录", Constant: true, Order: 1, Status: model.StatusEnabled},
		{Model: dal.Model{ID: 9}, RouteName: "manage_log", RoutePath: "/manage/log", MenuName: "日志管理", ParentID: 2, Order: 3, Status: model.StatusDisabled},
	}
	roleMenus := []model.RoleMenu{
		{RoleID: 1, MenuID: 1}, {RoleID: 1, MenuID: 2}, {RoleID: 1, MenuID: 3},
		{RoleID: 1, MenuID: 4}, {RoleID: 1, MenuID: 5}, {RoleID: 1, MenuID: 6},
		{RoleID: 1, MenuID: 7}, {RoleID: 1, MenuID: 9},
		{RoleID: 2, MenuID: 1},
		{RoleID: 3, MenuID: 2},
	}
	if err := db.Create(&roles).Error; err != nil {
		t.Fatalf("写入角色失败: %v", err)
	}
	if err := db.Create(&menus).Error; err != nil {
		t.Fatalf("写入菜单失败: %v", err)
	}
	if err := db.Create(&roleMenus).Error; err != nil {
		t.Fatalf("写入角色菜单关联失败: %v", err)
	}
}

func newTestResolver(t *testing.T) (*Resolver, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	seedMenus(t, db)
	c := cache.NewWithBackend(cache.NewMemoryBackend(0), "")
	return NewResolver(store.New(db), c, 300), db
}

func routeNames(routes []RouteNode) []string {
	names := make([]string, 0, len(routes))
	for _, r := range routes {
		names = append(names, r.Name)
	}
	return names
}

func TestResolveRoutesTreeAndVisibility(t *testing.T) {
	r, _ := newTestResolver(t)

	got, err := r.ResolveRoutes(context.Background(), []string{"admin"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}

	wantRoots := []string{"home", "manage", "orphan", "wrapper"}
	if names := routeNames(got.Routes); !reflect.DeepEqual(names, wantRoots) {
		t.Fatalf("根节点 = %v, 期望 %v", names, wantRoots)
	}
	if got.Home != "/dashboard" {
		t.Fatalf("home = %q, 期望 /dashboard", got.Home)
	}

	// 隐藏叶子与禁用菜单都不应出现在 manage 下
	manage := got.Routes[1]
	if names := routeNames(manage.Children); !reflect.DeepEqual(names, []string{"manage_user"}) {
		t.Fatalf("manage 子节点 = %v, 期望 [manage_user]", names)
	}

	// 隐藏目录因可见子节点而保留
	wrapper := got.Routes[3]
	if !wrapper.Meta.HideInMenu {
		t.Fatal("wrapper 应保留 hideInMenu 标记")
	}
	if names := routeNames(wrapper.Children); !reflect.DeepEqual(names, []string{"wrapper_child"}) {
		t.Fatalf("wrapper 子节点 = %v, 期望 [wrapper_child]", names)
	}
}

func TestResolveRoutesRoleOrderCommutative(t *testing.T) {
	r, db := newTestResolver(t)
	ctx := context.Background()

	first, err := r.ResolveRoutes(ctx, []string{"editor", "admin"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}

	// 清空关联后换序再查：命中同一缓存键才能得到相同结果
	if err := db.Where("1 = 1").Delete(&model.RoleMenu{}).Error; err != nil {
		t.Fatalf("清空角色菜单关联失败: %v", err)
	}
	second, err := r.ResolveRoutes(ctx, []string{"admin", "editor", "admin"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("角色码顺序与重复不应影响结果与缓存键")
	}
	// 落地路由取排序最靠前的角色
	if first.Home != "/dashboard" {
		t.Fatalf("home = %q, 期望 /dashboard", first.Home)
	}
}

func TestResolveRoutesEmptyAndUnknownRoles(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	for name, codes := range map[string][]string{
		"空集":   nil,
		"空白串":  {"", "  "},
		"未知角色": {"nobody"},
		"禁用角色": {"retired"},
	} {
		got, err := r.ResolveRoutes(ctx, codes)
		if err != nil {
			t.Fatalf("%s: 解析路由失败: %v", name, err)
		}
		if got.Routes == nil || len(got.Routes) != 0 {
			t.Fatalf("%s: 期望空路由列表, 得到 %v", name, got.Routes)
		}
		if got.Home != DefaultHome {
			t.Fatalf("%s: home = %q, 期望 %s", name, got.Home, DefaultHome)
		}
	}
}

func TestResolveRoutesIdempotent(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := r.ResolveRoutes(ctx, []string{"admin"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	second, err := r.ResolveRoutes(ctx, []string{"admin"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("同一角色集合的两次解析结果应一致")
	}
}

func TestResolveRoutesInvalidation(t *testing.T) {
	r, db := newTestResolver(t)
	ctx := context.Background()

	before, err := r.ResolveRoutes(ctx, []string{"editor"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if len(before.Routes) != 1 {
		t.Fatalf("编辑角色应有 1 条路由, 得到 %d", len(before.Routes))
	}

	if err := db.Where("role_id = ?", 2).Delete(&model.RoleMenu{}).Error; err != nil {
		t.Fatalf("删除角色菜单关联失败: %v", err)
	}

	// 未失效前仍命中旧缓存
	stale, err := r.ResolveRoutes(ctx, []string{"editor"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if len(stale.Routes) != 1 {
		t.Fatal("失效前应返回缓存结果")
	}

	if n := r.InvalidateRoutes(ctx); n == 0 {
		t.Fatal("失效应删除至少一个缓存键")
	}
	fresh, err := r.ResolveRoutes(ctx, []string{"editor"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if len(fresh.Routes) != 0 {
		t.Fatalf("失效后应反映最新数据, 得到 %v", fresh.Routes)
	}
}

func TestResolveConstantRoutes(t *testing.T) {
	r, _ := newTestResolver(t)

	got, err := r.ResolveConstantRoutes(context.Background())
	if err != nil {
		t.Fatalf("解析常量路由失败: %v", err)
	}
	if names := routeNames(got); !reflect.DeepEqual(names, []string{"login"}) {
		t.Fatalf("常量路由 = %v, 期望 [login]", names)
	}
	if !got[0].Meta.Constant {
		t.Fatal("常量路由应携带 constant 标记")
	}
}

func TestRouteExists(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	ok, err := r.RouteExists(ctx, []string{"admin"}, "wrapper_child")
	if err != nil {
		t.Fatalf("判断路由失败: %v", err)
	}
	if !ok {
		t.Fatal("嵌套路由名应可命中")
	}

	ok, err = r.RouteExists(ctx, []string{"editor"}, "manage_user")
	if err != nil {
		t.Fatalf("判断路由失败: %v", err)
	}
	if ok {
		t.Fatal("编辑角色不应看到 manage_user")
	}
}

func TestBuildRoutesMetaOmission(t *testing.T) {
	menus := []model.Menu{
		{Model: dal.Model{ID: 1}, RouteName: "plain", RoutePath: "/plain", MenuName: "普通页面", Order: 1, Status: model.StatusEnabled},
	}
	routes := buildRoutes(menus)
	if len(routes) != 1 {
		t.Fatalf("期望 1 条路由, 得到 %d", len(routes))
	}
	meta := routes[0].Meta
	if meta.I18nKey != "" || meta.Icon != "" || meta.ActiveMenu != "" || meta.FixedIndexInTab != nil {
		t.Fatalf("未设置的元信息不应携带值: %+v", meta)
	}
}

func TestResolveRoutesWithDeadRemoteCache(t *testing.T) {
	db := newTestDB(t)
	seedMenus(t, db)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("启动 miniredis 失败: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	// 远程缓存中途故障：解析结果不受影响，读写降级为未命中
	mr.Close()
	c := cache.NewWithBackend(cache.NewRedisBackend(client), "")
	r := NewResolver(store.New(db), c, 300)

	got, err := r.ResolveRoutes(context.Background(), []string{"admin"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if names := routeNames(got.Routes); !reflect.DeepEqual(names, []string{"home", "manage", "orphan", "wrapper"}) {
		t.Fatalf("根节点 = %v, 期望 [home manage orphan wrapper]", names)
	}
	if got.Home != "/dashboard" {
		t.Fatalf("home = %q, 期望 /dashboard", got.Home)
	}

	// 再次解析走数据库而非缓存，结果保持一致
	again, err := r.ResolveRoutes(context.Background(), []string{"admin"})
	if err != nil {
		t.Fatalf("解析路由失败: %v", err)
	}
	if !reflect.DeepEqual(routeNames(again.Routes), routeNames(got.Routes)) {
		t.Fatal("降级模式下两次解析结果应一致")
	}
}
