package middleware

import (
	"fmt"
	"runtime/debug"

	"contesthub-server/common/logger"
	"contesthub-server/internal/common/helper"
	"contesthub-server/internal/common/response"

	"github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// RecoverPanic 作为 web.BConfig.RecoverFunc 使用，捕获未处理的 panic，防止进程崩溃
func RecoverPanic(ctx *beegocontext.Context, _ *web.Config) {
	err := recover()
	if err == nil {
		return
	}
	if err == web.ErrAbort {
		return
	}
	traceID := helper.GetTraceID(ctx)

	// 记录 panic 信息和堆栈
	logger.Error("panic recovered",
		zap.String("trace_id", traceID),
		zap.String("method", ctx.Request.Method),
		zap.String("path", ctx.Request.URL.Path),
		zap.String("error", fmt.Sprint(err)),
		zap.String("stack", string(debug.Stack())))

	if ctx.ResponseWriter.Started {
		return
	}
	response.Abort(ctx, 500, response.CodeSystemError, "")
}
