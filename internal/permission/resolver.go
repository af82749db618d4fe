package permission

import (
	"context"
	"fmt"
	"sort"

	"github.com/myltx/nestbase-go/internal/store"
	"github.com/myltx/nestbase-go/pkg/cache"
)

// userCacheKey 用户权限缓存键
func userCacheKey(userID int64) string {
	return fmt.Sprintf("permissions:%d", userID)
}

// Resolver 权限解析器
// 按角色聚合启用的权限码；按用户维度的结果可选地走缓存
type Resolver struct {
	store store.Store
	cache *cache.Cache
	ttl   int
}

// NewResolver 创建权限解析器
func NewResolver(st store.Store, c *cache.Cache, ttlSeconds int) *Resolver {
	return &Resolver{
		store: st,
		cache: c,
		ttl:   ttlSeconds,
	}
}

// ResolvePermissions 解析角色集合持有的权限码（去重）
// 空角色集直接返回空集，不访问存储；禁用的权限不会出现在结果中
func (r *Resolver) ResolvePermissions(ctx context.Context, roleIDs []int64) (map[string]struct{}, error) {
	codes := make(map[string]struct{})
	if len(roleIDs) == 0 {
		return codes, nil
	}

	joins, err := r.store.FindRolePermissions(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("查询角色权限关联失败: %w", err)
	}
	if len(joins) == 0 {
		return codes, nil
	}

	permIDs := make([]int64, 0, len(joins))
	seen := make(map[int64]struct{}, len(joins))
	for _, j := range joins {
		if _, ok := seen[j.PermissionID]; ok {
			continue
		}
		seen[j.PermissionID] = struct{}{}
		permIDs = append(permIDs, j.PermissionID)
	}

	perms, err := r.store.FindPermissionsByIDs(ctx, permIDs, true)
	if err != nil {
		return nil, fmt.Errorf("查询权限失败: %w", err)
	}

	for i := range perms {
		codes[perms[i].Code] = struct{}{}
	}
	return codes, nil
}

// ResolveUserPermissions 解析用户持有的权限码（排序后的列表），结果按用户维度缓存
// 未持有任何角色的用户得到空列表，这是合法的"无权限"结果而非错误
func (r *Resolver) ResolveUserPermissions(ctx context.Context, userID int64) ([]string, error) {
	key := userCacheKey(userID)

	var cached []string
	if r.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	roleIDs, err := r.store.FindUserRoleIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("查询用户角色失败: %w", err)
	}

	codeSet, err := r.ResolvePermissions(ctx, roleIDs)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(codeSet))
	for code := range codeSet {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	r.cache.SetJSON(ctx, key, codes, r.ttl)
	return codes, nil
}

// InvalidateUsers 使指定用户的权限缓存失效
// 角色权限变更或用户角色变更后必须在变更返回前调用
func (r *Resolver) InvalidateUsers(ctx context.Context, userIDs ...int64) {
	if len(userIDs) == 0 {
		return
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = userCacheKey(id)
	}
	r.cache.Del(ctx, keys...)
}

// InvalidateAll 清空所有用户权限缓存
// 角色被删除/禁用/改码时使用（保守的全量失效）
func (r *Resolver) InvalidateAll(ctx context.Context) {
	r.cache.DelPrefix(ctx, "permissions:")
}
