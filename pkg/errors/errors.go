package errors

import (
	"errors"
	"fmt"
)

// 授权错误原因码（机器可读，前端据此分支处理）
const (
	ReasonUnauthenticated     = "UNAUTHENTICATED"
	ReasonForbiddenRole       = "FORBIDDEN_ROLE"
	ReasonForbiddenPermission = "FORBIDDEN_PERMISSION"
	ReasonRateLimited         = "RATE_LIMITED"
	// CACHE_DEGRADED 仅用于内部日志，永远不返回给调用方
	ReasonCacheDegraded = "CACHE_DEGRADED"
)

// 预定义错误
var (
	ErrNotFound       = New(404, "资源不存在")
	ErrUnauthorized   = New(401, "未授权")
	ErrForbidden      = New(403, "禁止访问")
	ErrBadRequest     = New(400, "请求错误")
	ErrInternalServer = New(500, "服务器内部错误")
	ErrValidation     = New(422, "验证错误")
	ErrDuplicateEntry = New(409, "数据已存在")
	ErrRecordNotFound = New(404, "记录不存在")
)

// AppError 应用错误
type AppError struct {
	Code    int         `json:"code"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Err     error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 解包错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is 检查是否为指定错误
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 类型转换错误
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetCode 获取错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return 500
}

// GetReason 获取错误原因码
func GetReason(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}

// NotFound 创建未找到错误
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    404,
		Message: fmt.Sprintf("%s不存在", resource),
	}
}

// BadRequest 创建请求错误
func BadRequest(message string) *AppError {
	return &AppError{
		Code:    400,
		Message: message,
	}
}

// Validation 创建验证错误
func Validation(message string) *AppError {
	return &AppError{
		Code:    422,
		Message: message,
	}
}

// Internal 创建内部错误
func Internal(message string) *AppError {
	if message == "" {
		message = "服务器内部错误"
	}
	return &AppError{
		Code:    500,
		Message: message,
	}
}

// Duplicate 创建重复错误
func Duplicate(field string) *AppError {
	return &AppError{
		Code:    409,
		Message: fmt.Sprintf("%s已存在", field),
	}
}

// Unauthenticated 未认证错误
func Unauthenticated(message string) *AppError {
	if message == "" {
		message = "未登录或登录已过期"
	}
	return &AppError{
		Code:    401,
		Reason:  ReasonUnauthenticated,
		Message: message,
	}
}

// ForbiddenRole 角色不满足错误
func ForbiddenRole(requiredRoles []string) *AppError {
	return &AppError{
		Code:    403,
		Reason:  ReasonForbiddenRole,
		Message: "权限不足，需要以下角色之一",
		Data:    map[string]interface{}{"requiredRoles": requiredRoles},
	}
}

// ForbiddenPermission 权限不满足错误，携带缺失的权限码
func ForbiddenPermission(missingCodes []string) *AppError {
	return &AppError{
		Code:    403,
		Reason:  ReasonForbiddenPermission,
		Message: "权限不足，缺少以下权限",
		Data:    map[string]interface{}{"missingPermissions": missingCodes},
	}
}

// RateLimited 触发限流错误，携带重试等待时间
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:    429,
		Reason:  ReasonRateLimited,
		Message: fmt.Sprintf("请求过于频繁，请在 %ds 后重试", retryAfterSeconds),
		Data:    map[string]interface{}{"retryAfterSeconds": retryAfterSeconds},
	}
}
