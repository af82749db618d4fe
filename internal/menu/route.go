package menu

import (
	"github.com/myltx/nestbase-go/internal/model"
)

// RouteMeta 路由元信息
// 可选字段为空时直接省略，不输出 null 占位
type RouteMeta struct {
	Title           string `json:"title"`
	I18nKey         string `json:"i18nKey,omitempty"`
	Order           int    `json:"order"`
	HideInMenu      bool   `json:"hideInMenu"`
	KeepAlive       bool   `json:"keepAlive"`
	Constant        bool   `json:"constant"`
	ActiveMenu      string `json:"activeMenu,omitempty"`
	Icon            string `json:"icon,omitempty"`
	FixedIndexInTab *int   `json:"fixedIndexInTab,omitempty"`
}

// RouteNode 前端路由描述
type RouteNode struct {
	Path      string      `json:"path"`
	Name      string      `json:"name"`
	Component string      `json:"component,omitempty"`
	Meta      RouteMeta   `json:"meta"`
	Children  []RouteNode `json:"children,omitempty"`
}

// UserRoutes 用户路由解析结果
type UserRoutes struct {
	Routes []RouteNode `json:"routes"`
	Home   string      `json:"home"`
}

// toRouteNode 将菜单转换为路由描述
func toRouteNode(m *model.Menu, children []RouteNode) RouteNode {
	return RouteNode{
		Path:      m.RoutePath,
		Name:      m.RouteName,
		Component: m.Component,
		Meta: RouteMeta{
			Title:           m.MenuName,
			I18nKey:         m.I18nKey,
			Order:           m.Order,
			HideInMenu:      m.HideInMenu,
			KeepAlive:       m.KeepAlive,
			Constant:        m.Constant,
			ActiveMenu:      m.ActiveMenu,
			Icon:            m.Icon,
			FixedIndexInTab: m.FixedIndexInTab,
		},
		Children: children,
	}
}

// buildRoutes 从扁平菜单列表构建路由树
// 输入必须已按 order 升序排列并按菜单ID去重
//
// 两条关键规则：
//  1. 父节点缺失的菜单按根节点处理，悬空的 parentId 不会导致构建失败
//  2. 自底向上的可见性过滤：无存活子节点且自身 hideInMenu 的节点被剪掉；
//     只要有存活子节点就保留，即使自身是隐藏的（隐藏的中间节点可能承载可见的孙节点）
func buildRoutes(menus []model.Menu) []RouteNode {
	present := make(map[int64]struct{}, len(menus))
	for i := range menus {
		present[menus[i].ID] = struct{}{}
	}

	children := make(map[int64][]*model.Menu)
	var roots []*model.Menu
	for i := range menus {
		m := &menus[i]
		if m.ParentID == 0 {
			roots = append(roots, m)
			continue
		}
		if _, ok := present[m.ParentID]; !ok {
			// 父节点不在列表中，按根节点处理
			roots = append(roots, m)
			continue
		}
		children[m.ParentID] = append(children[m.ParentID], m)
	}

	var build func(m *model.Menu) (RouteNode, bool)
	build = func(m *model.Menu) (RouteNode, bool) {
		var kids []RouteNode
		for _, child := range children[m.ID] {
			if node, ok := build(child); ok {
				kids = append(kids, node)
			}
		}

		if len(kids) == 0 && m.HideInMenu {
			return RouteNode{}, false
		}
		return toRouteNode(m, kids), true
	}

	routes := make([]RouteNode, 0, len(roots))
	for _, root := range roots {
		if node, ok := build(root); ok {
			routes = append(routes, node)
		}
	}
	return routes
}
