package authz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/myltx/nestbase-go/internal/model"
	"github.com/myltx/nestbase-go/internal/permission"
	"github.com/myltx/nestbase-go/internal/store"
	"github.com/myltx/nestbase-go/pkg/auth"
	"github.com/myltx/nestbase-go/pkg/cache"
	"github.com/myltx/nestbase-go/pkg/dal"
	"github.com/myltx/nestbase-go/pkg/middleware"
	"github.com/myltx/nestbase-go/pkg/ratelimit"
	"github.com/myltx/nestbase-go/pkg/response"
)

func newTestGuard(t *testing.T) *Guard {
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
	if err := db.AutoMigrate(&model.Role{}, &model.Permission{}, &model.RolePermission{}); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}

	roles := []model.Role{
		{Model: dal.Model{ID: 1}, Name: "管理员", Code: "admin", Home: "home", Status: model.StatusEnabled},
		{Model: dal.Model{ID: 2}, Name: "编辑", Code: "editor", Home: "home", Status: model.StatusEnabled},
	}
	perms := []model.Permission{
		{Model: dal.Model{ID: 1}, Name: "用户查询", Code: "user:read", Type: model.PermissionTypeAPI, Status: model.StatusEnabled},
		{Model: dal.Model{ID: 2}, Name: "用户编辑", Code: "user:write", Type: model.PermissionTypeAPI, Status: model.StatusEnabled},
	}
	rolePerms := []model.RolePermission{
		{RoleID: 1, PermissionID: 1}, {RoleID: 1, PermissionID: 2},
	}
	for _, seed := range []interface{}{&roles, &perms, &rolePerms} {
		if err := db.Create(seed).Error; err != nil {
			t.Fatalf("写入测试数据失败: %v", err)
		}
	}

	st := store.New(db)
	c := cache.NewWithBackend(cache.NewMemoryBackend(0), "")
	return NewGuard(st, permission.NewResolver(st, c, 300), ratelimit.New())
}

func newTestApp(g *Guard, p *auth.Principal, rule Rule) *fiber.App {
	app := fiber.New()
	app.Use(middleware.ErrorHandler())
	if p != nil {
		app.Use(func(c *fiber.Ctx) error {
			auth.SetPrincipal(c, p)
			return c.Next()
		})
	}
	app.Get("/t", g.Middleware(rule), func(c *fiber.Ctx) error {
		return response.Success(c, "ok")
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App) (int, response.Response) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/t", nil))
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()

	var body response.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	return resp.StatusCode, body
}

func TestGuardPublicBypass(t *testing.T) {
	g := newTestGuard(t)
	app := newTestApp(g, nil, Rule{Public: true, Roles: []string{"admin"}, Permissions: []string{"user:read"}})

	status, _ := doRequest(t, app)
	if status != http.StatusOK {
		t.Fatalf("公开路由应放行匿名请求, 状态 = %d", status)
	}
}

func TestGuardUnauthenticated(t *testing.T) {
	g := newTestGuard(t)
	app := newTestApp(g, nil, Rule{})

	status, body := doRequest(t, app)
	if status != http.StatusUnauthorized {
		t.Fatalf("状态 = %d, 期望 401", status)
	}
	if body.Reason != "UNAUTHENTICATED" {
		t.Fatalf("reason = %q, 期望 UNAUTHENTICATED", body.Reason)
	}
}

func TestGuardRoleAnyOf(t *testing.T) {
	g := newTestGuard(t)
	p := &auth.Principal{UserID: 10, Username: "tester", RoleCodes: []string{"editor"}}

	// 持有任一所需角色即放行
	status, _ := doRequest(t, newTestApp(g, p, Rule{Roles: []string{"admin", "editor"}}))
	if status != http.StatusOK {
		t.Fatalf("状态 = %d, 期望 200", status)
	}

	status, body := doRequest(t, newTestApp(g, p, Rule{Roles: []string{"admin"}}))
	if status != http.StatusForbidden {
		t.Fatalf("状态 = %d, 期望 403", status)
	}
	if body.Reason != "FORBIDDEN_ROLE" {
		t.Fatalf("reason = %q, 期望 FORBIDDEN_ROLE", body.Reason)
	}
}

func TestGuardPermissionAllOf(t *testing.T) {
	g := newTestGuard(t)
	p := &auth.Principal{UserID: 10, Username: "tester", RoleCodes: []string{"admin"}}

	status, _ := doRequest(t, newTestApp(g, p, Rule{Permissions: []string{"user:read", "user:write"}}))
	if status != http.StatusOK {
		t.Fatalf("状态 = %d, 期望 200", status)
	}

	status, body := doRequest(t, newTestApp(g, p, Rule{Permissions: []string{"user:read", "user:delete", "user:export"}}))
	if status != http.StatusForbidden {
		t.Fatalf("状态 = %d, 期望 403", status)
	}
	if body.Reason != "FORBIDDEN_PERMISSION" {
		t.Fatalf("reason = %q, 期望 FORBIDDEN_PERMISSION", body.Reason)
	}

	data, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("负载格式错误: %v", body.Data)
	}
	missing, _ := data["missingPermissions"].([]interface{})
	want := []interface{}{"user:delete", "user:export"}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("缺失权限 = %v, 期望 %v", missing, want)
	}
}

func TestGuardPermissionWithoutRoles(t *testing.T) {
	g := newTestGuard(t)
	p := &auth.Principal{UserID: 10, Username: "tester", RoleCodes: nil}

	status, body := doRequest(t, newTestApp(g, p, Rule{Permissions: []string{"user:read"}}))
	if status != http.StatusForbidden {
		t.Fatalf("状态 = %d, 期望 403", status)
	}
	if body.Reason != "FORBIDDEN_PERMISSION" {
		t.Fatalf("reason = %q, 期望 FORBIDDEN_PERMISSION", body.Reason)
	}
}

func TestGuardRateLimit(t *testing.T) {
	g := newTestGuard(t)
	rule := Rule{Public: true, RateLimit: &RateLimitRule{Scope: "test", WindowSeconds: 60, Limit: 2}}
	app := newTestApp(g, nil, rule)

	for i := 0; i < 2; i++ {
		status, _ := doRequest(t, app)
		if status != http.StatusOK {
			t.Fatalf("第 %d 次请求状态 = %d, 期望 200", i+1, status)
		}
	}

	status, body := doRequest(t, app)
	if status != http.StatusTooManyRequests {
		t.Fatalf("状态 = %d, 期望 429", status)
	}
	if body.Reason != "RATE_LIMITED" {
		t.Fatalf("reason = %q, 期望 RATE_LIMITED", body.Reason)
	}
	data, _ := body.Data.(map[string]interface{})
	retry, _ := data["retryAfterSeconds"].(float64)
	if retry < 1 {
		t.Fatalf("retryAfterSeconds = %v, 应至少为 1", retry)
	}

	// 已认证用户按用户ID限流，不与匿名来源共享窗口
	p := &auth.Principal{UserID: 10, Username: "tester"}
	status, _ = doRequest(t, newTestApp(g, p, rule))
	if status != http.StatusOK {
		t.Fatalf("状态 = %d, 期望 200", status)
	}
}
