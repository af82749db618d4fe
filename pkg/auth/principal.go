package auth

import (
	"github.com/gofiber/fiber/v2"
)

// principalKey 请求上下文中主体信息的存储键
const principalKey = "principal"

// Principal 已认证主体
type Principal struct {
	UserID    int64    `json:"userId"`
	Username  string   `json:"username"`
	RoleCodes []string `json:"roleCodes"`
}

// HasAnyRole 是否持有给定角色中的任意一个
func (p *Principal) HasAnyRole(codes []string) bool {
	for _, required := range codes {
		for _, held := range p.RoleCodes {
			if held == required {
				return true
			}
		}
	}
	return false
}

// SetPrincipal 将主体信息写入请求上下文
func SetPrincipal(c *fiber.Ctx, p *Principal) {
	c.Locals(principalKey, p)
}

// GetPrincipal 从请求上下文读取主体信息，未认证时返回 nil
func GetPrincipal(c *fiber.Ctx) *Principal {
	p, _ := c.Locals(principalKey).(*Principal)
	return p
}
