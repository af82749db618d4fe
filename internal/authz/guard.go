package authz

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/myltx/nestbase-go/internal/permission"
	"github.com/myltx/nestbase-go/internal/store"
	"github.com/myltx/nestbase-go/pkg/auth"
	"github.com/myltx/nestbase-go/pkg/errors"
	"github.com/myltx/nestbase-go/pkg/logger"
	"github.com/myltx/nestbase-go/pkg/ratelimit"
)

// RateLimitRule 路由级限流配置
// Scope 为空时使用路由模板路径，同一路由的不同实参共享窗口
type RateLimitRule struct {
	Scope         string
	WindowSeconds int
	Limit         int
}

// Rule 路由授权规则
// Roles 为"任一满足"，Permissions 为"全部满足"；两者可叠加
type Rule struct {
	Public      bool
	Roles       []string
	Permissions []string
	RateLimit   *RateLimitRule
}

// Guard 授权守卫
// 固定管道：公开判定 → 角色校验 → 权限校验 → 限流
type Guard struct {
	store       store.Store
	permissions *permission.Resolver
	limiter     *ratelimit.Limiter
}

// NewGuard 创建授权守卫
func NewGuard(st store.Store, perms *permission.Resolver, limiter *ratelimit.Limiter) *Guard {
	return &Guard{
		store:       st,
		permissions: perms,
		limiter:     limiter,
	}
}

// Middleware 按规则生成路由中间件
func (g *Guard) Middleware(rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := auth.GetPrincipal(c)

		if !rule.Public {
			if p == nil {
				return errors.Unauthenticated("")
			}

			if len(rule.Roles) > 0 && !p.HasAnyRole(rule.Roles) {
				logger.Info("角色校验未通过",
					zap.Int64("userId", p.UserID),
					zap.Strings("required", rule.Roles),
					zap.Strings("held", p.RoleCodes),
				)
				return errors.ForbiddenRole(rule.Roles)
			}

			if len(rule.Permissions) > 0 {
				missing, err := g.missingPermissions(c, p, rule.Permissions)
				if err != nil {
					return err
				}
				if len(missing) > 0 {
					logger.Info("权限校验未通过",
						zap.Int64("userId", p.UserID),
						zap.Strings("missing", missing),
					)
					return errors.ForbiddenPermission(missing)
				}
			}
		}

		if rule.RateLimit != nil {
			scope := rule.RateLimit.Scope
			if scope == "" {
				scope = c.Route().Path
			}
			result := g.limiter.Allow(scope, actorKey(c, p), rule.RateLimit.WindowSeconds, rule.RateLimit.Limit)
			if !result.Allowed {
				return errors.RateLimited(result.RetryAfterSeconds)
			}
		}

		return c.Next()
	}
}

// missingPermissions 计算主体缺失的权限码，保持规则声明顺序
func (g *Guard) missingPermissions(c *fiber.Ctx, p *auth.Principal, required []string) ([]string, error) {
	ctx := c.UserContext()

	roles, err := g.store.FindEnabledRolesByCodes(ctx, p.RoleCodes)
	if err != nil {
		return nil, errors.Wrap(err, 500, "查询角色失败")
	}

	roleIDs := make([]int64, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}

	held, err := g.permissions.ResolvePermissions(ctx, roleIDs)
	if err != nil {
		return nil, errors.Wrap(err, 500, "解析权限失败")
	}

	var missing []string
	for _, code := range required {
		if _, ok := held[code]; !ok {
			missing = append(missing, code)
		}
	}
	return missing, nil
}

// actorKey 限流主体标识：已认证用户按用户ID，匿名请求按来源IP
func actorKey(c *fiber.Ctx, p *auth.Principal) string {
	if p != nil {
		return strconv.FormatInt(p.UserID, 10)
	}
	return c.IP()
}
