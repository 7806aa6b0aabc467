package middleware

import (
	"context"
	"errors"
	"strings"

	"contesthub-server/common/logger"
	"contesthub-server/internal/auth"
	"contesthub-server/internal/common/helper"
	"contesthub-server/internal/common/response"
	"contesthub-server/internal/service"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// Authorizer 按已存角色校验 email 是否具备 roles 之一
type Authorizer interface {
	Authorize(ctx context.Context, email string, roles ...string) error
}

// AuthFilter 用户认证过滤器（Bearer Token）
// 解析成功后向 context 注入 email 与 token
func AuthFilter(v auth.IdentityVerifier) func(ctx *beegocontext.Context) {
	return func(ctx *beegocontext.Context) {
		traceID := helper.GetTraceID(ctx)

		token, err := auth.BearerToken(ctx.Input.Header("Authorization"))
		if err == nil {
			var email string
			email, err = v.ResolveIdentity(ctx.Request.Context(), token)
			if err == nil {
				ctx.Input.SetData("email", email)
				ctx.Input.SetData("token", token)
				return
			}
		}

		logger.Warn("user authentication failed",
			zap.String("trace_id", traceID),
			zap.String("path", ctx.Request.URL.Path),
			zap.Error(err))

		// 根据错误类型返回不同的错误码
		switch {
		case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidTokenFormat):
			response.Abort(ctx, 401, response.CodeUnauthorized, err.Error())
		case errors.Is(err, auth.ErrTokenExpired):
			response.Abort(ctx, 401, response.CodeTokenExpired, err.Error())
		case errors.Is(err, auth.ErrTokenRevoked):
			response.Abort(ctx, 401, response.CodeTokenRevoked, err.Error())
		default:
			response.Abort(ctx, 401, response.CodeInvalidToken, "invalid token")
		}
	}
}

// RoleFilter 角色校验过滤器，需放在 AuthFilter 之后
func RoleFilter(az Authorizer, roles ...string) func(ctx *beegocontext.Context) {
	return func(ctx *beegocontext.Context) {
		email := helper.GetEmail(ctx)
		if email == "" {
			response.Abort(ctx, 401, response.CodeUnauthorized, auth.ErrMissingToken.Error())
			return
		}
		err := az.Authorize(ctx.Request.Context(), email, roles...)
		if err == nil {
			return
		}
		if errors.Is(err, service.ErrForbidden) {
			logger.Warn("role check failed",
				zap.String("trace_id", helper.GetTraceID(ctx)),
				zap.String("email", email),
				zap.Strings("roles", roles))
			response.Abort(ctx, 403, response.CodeForbidden, "requires role "+strings.Join(roles, "|"))
			return
		}
		logger.Error("role lookup failed", zap.String("trace_id", helper.GetTraceID(ctx)), zap.Error(err))
		response.Abort(ctx, 500, response.CodeSystemError, "")
	}
}

// OnMethods 仅对指定 HTTP 方法执行过滤器（同一路径不同方法权限不同时使用）
func OnMethods(f func(ctx *beegocontext.Context), methods ...string) func(ctx *beegocontext.Context) {
	return func(ctx *beegocontext.Context) {
		for _, m := range methods {
			if strings.EqualFold(ctx.Request.Method, m) {
				f(ctx)
				return
			}
		}
	}
}
