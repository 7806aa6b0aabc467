package api

import (
	"errors"

	"contesthub-server/common/logger"
	"contesthub-server/internal/common/response"
	"contesthub-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// writeError 业务错误到 HTTP 状态的统一映射
func writeError(c *beego.Controller, err error, traceID string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		response.BadRequest(c, err.Error(), traceID)
	case errors.Is(err, service.ErrAlreadyPaid):
		response.ErrorWithMessage(c, 400, response.CodeAlreadyPaid, err.Error(), traceID)
	case errors.Is(err, service.ErrPaymentNotCompleted):
		response.ErrorWithMessage(c, 400, response.CodePaymentIncomplete, err.Error(), traceID)
	case errors.Is(err, service.ErrInvalidAction):
		response.ErrorWithMessage(c, 400, response.CodeInvalidAction, "action must be one of confirm|reject|delete", traceID)
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrContestLocked):
		response.ErrorWithMessage(c, 400, response.CodeInvalidState, err.Error(), traceID)
	case errors.Is(err, service.ErrContestClosed):
		response.ErrorWithMessage(c, 400, response.CodeContestClosed, err.Error(), traceID)
	case errors.Is(err, service.ErrNotParticipant):
		response.ErrorWithMessage(c, 400, response.CodeNotParticipant, err.Error(), traceID)
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, traceID)
	case errors.Is(err, service.ErrContestNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, err.Error(), traceID)
	case errors.Is(err, service.ErrExternalService):
		// 支付平台错误原样透传
		response.InternalErrorWithMessage(c, response.CodeExternalService, err.Error(), traceID)
	default:
		logger.Error("request failed",
			zap.String("trace_id", traceID),
			zap.String("path", c.Ctx.Request.URL.Path),
			zap.Error(err))
		response.InternalError(c, traceID)
	}
}
