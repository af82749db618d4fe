package role

// CreateRequest 创建角色请求
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code" binding:"required"`
	Home        string `json:"home"`
	Status      int8   `json:"status"`
	Sort        int    `json:"sort"`
	Description string `json:"description"`
}

// UpdateRequest 更新角色请求
// Code 可改，改码会触发全量缓存失效
type UpdateRequest struct {
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Home        string  `json:"home"`
	Status      int8    `json:"status"`
	Sort        *int    `json:"sort"`
	Description *string `json:"description"`
}

// SetMenusRequest 设置角色菜单请求
type SetMenusRequest struct {
	MenuIDs []int64 `json:"menuIds"`
}

// SetPermissionsRequest 设置角色权限请求
type SetPermissionsRequest struct {
	PermissionIDs []int64 `json:"permissionIds"`
}

// SetUserRolesRequest 设置用户角色请求
type SetUserRolesRequest struct {
	RoleIDs []int64 `json:"roleIds"`
}
