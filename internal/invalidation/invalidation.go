package invalidation

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/myltx/nestbase-go/pkg/broadcast"
	"github.com/myltx/nestbase-go/pkg/logger"
)

// Topic 缓存失效广播主题
const Topic = "authz.cache.invalidate"

// 失效事件类型
const (
	KindRoutes      = "routes"      // 角色菜单映射或菜单本体变更
	KindPermissions = "permissions" // 指定用户的权限来源变更
	KindAll         = "all"         // 角色删除/禁用/改码，全量失效
)

// Event 缓存失效事件
type Event struct {
	Kind    string  `json:"kind"`
	UserIDs []int64 `json:"userIds,omitempty"`
}

// RouteInvalidator 路由缓存失效入口
type RouteInvalidator interface {
	InvalidateRoutes(ctx context.Context) int
}

// PermissionInvalidator 权限缓存失效入口
type PermissionInvalidator interface {
	InvalidateUsers(ctx context.Context, userIDs ...int64)
	InvalidateAll(ctx context.Context)
}

// Notifier 缓存失效通知器
// 变更入口先在本进程失效，再广播给集群内其他节点；
// 未配置广播器时退化为纯本地失效（共享 Redis 后端本身对所有节点可见）
type Notifier struct {
	menus       RouteInvalidator
	permissions PermissionInvalidator
	broadcaster *broadcast.Broadcaster
}

// NewNotifier 创建失效通知器，broadcaster 可为 nil
func NewNotifier(menus RouteInvalidator, perms PermissionInvalidator, b *broadcast.Broadcaster) *Notifier {
	n := &Notifier{
		menus:       menus,
		permissions: perms,
		broadcaster: b,
	}
	if b != nil {
		b.Subscribe(Topic, n.onRemote)
	}
	return n
}

// RoutesChanged 角色菜单映射或菜单变更后调用，必须在变更请求返回前完成本地失效
func (n *Notifier) RoutesChanged(ctx context.Context) {
	n.menus.InvalidateRoutes(ctx)
	n.publish(ctx, Event{Kind: KindRoutes})
}

// PermissionsChanged 角色权限关联或用户角色关联变更后调用
func (n *Notifier) PermissionsChanged(ctx context.Context, userIDs ...int64) {
	n.permissions.InvalidateUsers(ctx, userIDs...)
	n.publish(ctx, Event{Kind: KindPermissions, UserIDs: userIDs})
}

// RoleChanged 角色删除/禁用/改码后调用，两类缓存全部失效
func (n *Notifier) RoleChanged(ctx context.Context) {
	n.menus.InvalidateRoutes(ctx)
	n.permissions.InvalidateAll(ctx)
	n.publish(ctx, Event{Kind: KindAll})
}

// publish 异步场景不阻塞调用方，发布失败只记日志
func (n *Notifier) publish(ctx context.Context, evt Event) {
	if n.broadcaster == nil {
		return
	}
	if err := n.broadcaster.PublishJSON(ctx, Topic, evt); err != nil {
		logger.Warn("失效事件广播失败", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

// onRemote 应用对端节点的失效事件，不再二次广播
func (n *Notifier) onRemote(msg *broadcast.Message) {
	var evt Event
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		logger.Warn("失效事件解析失败", zap.Error(err))
		return
	}

	ctx := context.Background()
	switch evt.Kind {
	case KindRoutes:
		n.menus.InvalidateRoutes(ctx)
	case KindPermissions:
		n.permissions.InvalidateUsers(ctx, evt.UserIDs...)
	case KindAll:
		n.menus.InvalidateRoutes(ctx)
		n.permissions.InvalidateAll(ctx)
	default:
		logger.Warn("未知的失效事件类型", zap.String("kind", evt.Kind))
	}
}
