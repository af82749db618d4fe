package model

import (
	"github.com/myltx/nestbase-go/pkg/dal"
)

// 菜单类型
const (
	MenuTypeDirectory int8 = 1 // 目录
	MenuTypePage      int8 = 2 // 页面
)

// Menu 菜单模型
// RouteName 全局唯一；ParentID 为 0 表示根节点
// Constant 标记的菜单未登录即可访问，不参与角色过滤
type Menu struct {
	dal.Model
	RouteName       string `gorm:"size:100;uniqueIndex;not null" json:"routeName"`
	RoutePath       string `gorm:"size:255" json:"routePath"`
	MenuName        string `gorm:"size:50;not null" json:"menuName"`
	I18nKey         string `gorm:"size:100" json:"i18nKey"`
	Icon            string `gorm:"size:100" json:"icon"`
	ParentID        int64  `gorm:"default:0;index" json:"parentId"`
	Order           int    `gorm:"column:order_no;default:0" json:"order"`
	MenuType        int8   `gorm:"default:2" json:"menuType"`
	Component       string `gorm:"size:255" json:"component"`
	HideInMenu      bool   `gorm:"default:false" json:"hideInMenu"`
	ActiveMenu      string `gorm:"size:100" json:"activeMenu"`
	KeepAlive       bool   `gorm:"default:true" json:"keepAlive"`
	Constant        bool   `gorm:"default:false" json:"constant"`
	FixedIndexInTab *int   `json:"fixedIndexInTab,omitempty"`
	Status          int8   `gorm:"default:1" json:"status"`
}

// TableName 表名
func (Menu) TableName() string {
	return "sys_menu"
}

// Enabled 菜单是否启用
func (m *Menu) Enabled() bool {
	return m.Status == StatusEnabled
}
