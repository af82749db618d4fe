package menu

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/myltx/nestbase-go/internal/store"
	"github.com/myltx/nestbase-go/pkg/cache"
)

const (
	routesKeyPrefix = "menu:routes:"
	guestKey        = routesKeyPrefix + "guest"

	// DefaultHome 无匹配角色时的默认落地路由
	DefaultHome = "/home"
)

// routesCacheKey 构建路由缓存键
// 角色码去空、去重后按字典序排序拼接，保证同一角色集合命中同一份缓存
func routesCacheKey(roleCodes []string) (string, []string) {
	seen := make(map[string]struct{}, len(roleCodes))
	normalized := make([]string, 0, len(roleCodes))
	for _, code := range roleCodes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		normalized = append(normalized, code)
	}
	if len(normalized) == 0 {
		return guestKey, nil
	}
	sort.Strings(normalized)
	return routesKeyPrefix + strings.Join(normalized, "|"), normalized
}

// Resolver 菜单路由解析器
type Resolver struct {
	store store.Store
	cache *cache.Cache
	ttl   int
}

// NewResolver 创建菜单路由解析器
func NewResolver(st store.Store, c *cache.Cache, ttlSeconds int) *Resolver {
	return &Resolver{
		store: st,
		cache: c,
		ttl:   ttlSeconds,
	}
}

// ResolveRoutes 解析角色集合可见的路由树及落地路由
// 结果按归一化的角色码集合缓存；角色码顺序不影响结果与缓存键
func (r *Resolver) ResolveRoutes(ctx context.Context, roleCodes []string) (*UserRoutes, error) {
	key, normalized := routesCacheKey(roleCodes)

	var cached UserRoutes
	if ok := r.cache.GetJSON(ctx, key, &cached); ok {
		return &cached, nil
	}

	result := &UserRoutes{
		Routes: make([]RouteNode, 0),
		Home:   DefaultHome,
	}

	if len(normalized) == 0 {
		r.cache.SetJSON(ctx, key, result, r.ttl)
		return result, nil
	}

	roles, err := r.store.FindEnabledRolesByCodes(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("查询角色失败: %w", err)
	}
	if len(roles) == 0 {
		r.cache.SetJSON(ctx, key, result, r.ttl)
		return result, nil
	}

	if home := roles[0].Home; home != "" {
		result.Home = "/" + strings.TrimPrefix(home, "/")
	}

	roleIDs := make([]int64, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}

	joins, err := r.store.FindRoleMenus(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("查询角色菜单关联失败: %w", err)
	}

	menuIDs := make([]int64, 0, len(joins))
	seen := make(map[int64]struct{}, len(joins))
	for _, j := range joins {
		if _, ok := seen[j.MenuID]; ok {
			continue
		}
		seen[j.MenuID] = struct{}{}
		menuIDs = append(menuIDs, j.MenuID)
	}

	if len(menuIDs) > 0 {
		menus, err := r.store.FindMenusByIDs(ctx, menuIDs, true)
		if err != nil {
			return nil, fmt.Errorf("查询菜单失败: %w", err)
		}
		result.Routes = buildRoutes(menus)
	}

	r.cache.SetJSON(ctx, key, result, r.ttl)
	return result, nil
}

// ResolveConstantRoutes 解析常量路由（无需登录即可访问，不走缓存）
func (r *Resolver) ResolveConstantRoutes(ctx context.Context) ([]RouteNode, error) {
	menus, err := r.store.FindConstantMenus(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询常量菜单失败: %w", err)
	}
	return buildRoutes(menus), nil
}

// RouteExists 判断路由名对应的菜单是否对给定角色集合可见
func (r *Resolver) RouteExists(ctx context.Context, roleCodes []string, routeName string) (bool, error) {
	resolved, err := r.ResolveRoutes(ctx, roleCodes)
	if err != nil {
		return false, err
	}
	return containsRoute(resolved.Routes, routeName), nil
}

func containsRoute(routes []RouteNode, name string) bool {
	for _, route := range routes {
		if route.Name == name {
			return true
		}
		if containsRoute(route.Children, name) {
			return true
		}
	}
	return false
}

// InvalidateRoutes 失效全部路由缓存
// 任何角色-菜单映射或菜单本身的变更都走这一条粗粒度失效
func (r *Resolver) InvalidateRoutes(ctx context.Context) int {
	return r.cache.DelPrefix(ctx, routesKeyPrefix)
}
