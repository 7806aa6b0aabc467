package response

import (
	"time"

	beego "github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// APIResponse 统一 API 响应结构
// 所有 API 都应该返回这个结构，无论成功还是失败
type APIResponse struct {
	Code      int         `json:"code"`                // 业务错误码：0=成功，非0=失败
	Message   string      `json:"message"`             // 提示消息
	Error     string      `json:"error,omitempty"`     // 失败原因（仅失败时）
	Data      interface{} `json:"data,omitempty"`      // 业务数据（失败时为 null）
	TraceID   string      `json:"trace_id,omitempty"`  // 请求追踪ID
	Timestamp int64       `json:"timestamp,omitempty"` // 响应时间戳（Unix 毫秒）
}

// 错误码定义
const (
	CodeSuccess            = 0    // 成功
	CodeBadRequest         = 1000 // 参数错误
	CodeBusinessError      = 2000 // 业务错误（通用）
	CodeAlreadyPaid        = 2001 // 已支付过该比赛
	CodePaymentIncomplete  = 2002 // 支付未完成
	CodeInvalidAction      = 2003 // 审核动作无效
	CodeInvalidState       = 2004 // 状态不允许
	CodeContestClosed      = 2005 // 比赛已截止
	CodeNotParticipant     = 2006 // 未报名（未支付）
	CodeUnauthorized       = 3000 // 未授权
	CodeInvalidToken       = 3001 // Token 无效
	CodeTokenExpired       = 3002 // Token 过期
	CodeTokenRevoked       = 3003 // Token 已撤销
	CodeForbidden          = 3009 // 禁止访问
	CodeRateLimitExceeded  = 4000 // 请求频率超限
	CodeNotFound           = 4004 // 资源不存在
	CodeSystemError        = 5000 // 系统错误
	CodeExternalService    = 5001 // 支付平台错误
	CodeServiceUnavailable = 5003 // 依赖不可用
)

// ErrorMessages 错误消息映射
var ErrorMessages = map[int]string{
	CodeSuccess:            "success",
	CodeBadRequest:         "invalid request",
	CodeBusinessError:      "request could not be processed",
	CodeAlreadyPaid:        "already paid for this contest",
	CodePaymentIncomplete:  "payment not completed",
	CodeInvalidAction:      "invalid action",
	CodeInvalidState:       "operation not allowed in current status",
	CodeContestClosed:      "contest is closed",
	CodeNotParticipant:     "payment required before submitting",
	CodeUnauthorized:       "unauthorized access",
	CodeInvalidToken:       "invalid token",
	CodeTokenExpired:       "token expired",
	CodeTokenRevoked:       "token revoked",
	CodeForbidden:          "forbidden access",
	CodeRateLimitExceeded:  "too many requests, please retry later",
	CodeNotFound:           "resource not found",
	CodeSystemError:        "internal server error",
	CodeExternalService:    "payment provider error",
	CodeServiceUnavailable: "service unavailable",
}

// Success 成功响应
// 示例：
//
//	response.Success(c, map[string]interface{}{
//	    "transactionId": "pi_3Nx...",
//	    "message":       "payment recorded",
//	}, traceID)
func Success(c *beego.Controller, data interface{}, traceID string) {
	c.Data["json"] = APIResponse{
		Code:      CodeSuccess,
		Message:   ErrorMessages[CodeSuccess],
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	_ = c.ServeJSON()
}

// Error 错误响应（使用预定义的错误消息）
func Error(c *beego.Controller, httpStatus int, code int, traceID string) {
	ErrorWithMessage(c, httpStatus, code, getErrorMessage(code), traceID)
}

// ErrorWithMessage 错误响应（自定义 error 字段）
// message 取错误码的通用文案，errMsg 为具体原因
//
//	response.ErrorWithMessage(c, 400, response.CodeBadRequest, "sessionId is required", traceID)
func ErrorWithMessage(c *beego.Controller, httpStatus int, code int, errMsg string, traceID string) {
	c.Ctx.Output.SetStatus(httpStatus)
	c.Data["json"] = newError(code, errMsg, traceID)
	_ = c.ServeJSON()
}

// Abort 供过滤器使用：直接写出错误响应
func Abort(ctx *beegocontext.Context, httpStatus int, code int, errMsg string) {
	ctx.Output.SetStatus(httpStatus)
	traceID := ""
	if v, ok := ctx.Input.GetData("trace_id").(string); ok {
		traceID = v
	}
	_ = ctx.Output.JSON(newError(code, errMsg, traceID), false, false)
}

func newError(code int, errMsg, traceID string) APIResponse {
	msg := getErrorMessage(code)
	if errMsg == "" {
		errMsg = msg
	}
	return APIResponse{
		Code:      code,
		Message:   msg,
		Error:     errMsg,
		Data:      nil,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// BadRequest 参数错误响应（HTTP 400）
func BadRequest(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, 400, CodeBadRequest, message, traceID)
}

// Unauthorized 未认证（HTTP 401）
func Unauthorized(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, 401, CodeUnauthorized, message, traceID)
}

// Forbidden 无权限（HTTP 403）
func Forbidden(c *beego.Controller, traceID string) {
	Error(c, 403, CodeForbidden, traceID)
}

// NotFound 资源不存在响应（HTTP 404）
func NotFound(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, 404, CodeNotFound, message, traceID)
}

// InternalError 系统错误响应（HTTP 500）
func InternalError(c *beego.Controller, traceID string) {
	Error(c, 500, CodeSystemError, traceID)
}

// InternalErrorWithMessage 系统错误响应（HTTP 500，自定义原因）
// 仅用于可以对外透传的原因（如支付平台返回的错误），存储错误只记日志
func InternalErrorWithMessage(c *beego.Controller, code int, message string, traceID string) {
	ErrorWithMessage(c, 500, code, message, traceID)
}

// getErrorMessage 获取错误消息，如果未定义则返回通用消息
func getErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "unknown error"
}
