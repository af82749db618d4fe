package menu

// CreateRequest 创建菜单请求
type CreateRequest struct {
	RouteName       string `json:"routeName" binding:"required"`
	RoutePath       string `json:"routePath"`
	MenuName        string `json:"menuName" binding:"required"`
	I18nKey         string `json:"i18nKey"`
	Icon            string `json:"icon"`
	ParentID        int64  `json:"parentId"`
	Order           int    `json:"order"`
	MenuType        int8   `json:"menuType"`
	Component       string `json:"component"`
	HideInMenu      bool   `json:"hideInMenu"`
	ActiveMenu      string `json:"activeMenu"`
	KeepAlive       *bool  `json:"keepAlive"`
	Constant        bool   `json:"constant"`
	FixedIndexInTab *int   `json:"fixedIndexInTab"`
	Status          int8   `json:"status"`
}

// UpdateRequest 更新菜单请求
type UpdateRequest struct {
	RoutePath       string  `json:"routePath"`
	MenuName        string  `json:"menuName"`
	I18nKey         *string `json:"i18nKey"`
	Icon            *string `json:"icon"`
	ParentID        *int64  `json:"parentId"`
	Order           *int    `json:"order"`
	MenuType        int8    `json:"menuType"`
	Component       *string `json:"component"`
	HideInMenu      *bool   `json:"hideInMenu"`
	ActiveMenu      *string `json:"activeMenu"`
	KeepAlive       *bool   `json:"keepAlive"`
	Constant        *bool   `json:"constant"`
	FixedIndexInTab *int    `json:"fixedIndexInTab"`
	Status          int8    `json:"status"`
}
