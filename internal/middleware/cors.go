package middleware

import (
	"fmt"
	"strings"

	"contesthub-server/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// 未配置时的默认值，覆盖前端用到的方法与请求头
var (
	defaultCORSMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Authorization", "Content-Type", "X-Request-Id"}
)

func orDefault(v, def []string) string {
	if len(v) == 0 {
		v = def
	}
	return strings.Join(v, ", ")
}

// CORSFilter CORS 跨域中间件（前端 SPA 直接调用）
func CORSFilter(ctx *beegocontext.Context) {
	cfg := config.GetCurrent()
	if cfg == nil || !cfg.CORS.Enabled {
		return
	}

	origin := ctx.Request.Header.Get("Origin")
	if origin == "" {
		return
	}

	// 检查 Origin 是否在允许列表中
	allowed := false
	for _, allowedOrigin := range cfg.CORS.AllowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}

	// 设置 CORS 响应头
	ctx.Output.Header("Access-Control-Allow-Origin", origin)
	ctx.Output.Header("Vary", "Origin")
	ctx.Output.Header("Access-Control-Allow-Methods", orDefault(cfg.CORS.AllowedMethods, defaultCORSMethods))
	ctx.Output.Header("Access-Control-Allow-Headers", orDefault(cfg.CORS.AllowedHeaders, defaultCORSHeaders))
	// 前端需要读取 X-Request-Id 用于问题排查
	ctx.Output.Header("Access-Control-Expose-Headers", orDefault(cfg.CORS.ExposedHeaders, []string{"X-Request-Id"}))
	if cfg.CORS.MaxAge > 0 {
		ctx.Output.Header("Access-Control-Max-Age", fmt.Sprintf("%d", cfg.CORS.MaxAge))
	}

	if cfg.CORS.AllowCredentials {
		ctx.Output.Header("Access-Control-Allow-Credentials", "true")
	}

	// 处理 OPTIONS 预检请求
	if ctx.Request.Method == "OPTIONS" {
		ctx.Output.SetStatus(204)
		_ = ctx.Output.Body([]byte{})
	}
}
