package middleware

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"contesthub-server/common/logger"
	"contesthub-server/internal/common/helper"
	"contesthub-server/internal/common/response"
	"contesthub-server/internal/config"
	infrds "contesthub-server/internal/infra/redis"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitFilter 限流中间件
// 支持多维度限流：全局、按IP、按用户（需在 AuthFilter 之后才有 email）
func RateLimitFilter(rdb *redis.Client) func(ctx *beegocontext.Context) {
	return func(ctx *beegocontext.Context) {
		cfg := config.GetCurrent()
		if cfg == nil || !cfg.RateLimit.Enabled {
			return
		}

		traceID := helper.GetTraceID(ctx)
		if rdb == nil {
			// Redis 不可用时，跳过限流（降级）
			logger.Warn("redis not available, skip rate limit", zap.String("trace_id", traceID))
			return
		}

		reqCtx := ctx.Request.Context()

		// 1. 全局限流
		if cfg.RateLimit.Global.RequestsPerSecond > 0 {
			if !checkRateLimit(reqCtx, rdb, "global", "all", cfg.RateLimit.Global.RequestsPerSecond, 1) {
				logger.Warn("global rate limit exceeded", zap.String("trace_id", traceID))
				response.Abort(ctx, 429, response.CodeRateLimitExceeded, "")
				return
			}
		}

		// 2. 按IP限流
		if cfg.RateLimit.ByIP.RequestsPerSecond > 0 {
			clientIP := getClientIP(ctx)
			if !checkRateLimit(reqCtx, rdb, "ip", clientIP, cfg.RateLimit.ByIP.RequestsPerSecond, cfg.RateLimit.ByIP.WindowSeconds) {
				logger.Warn("ip rate limit exceeded",
					zap.String("trace_id", traceID),
					zap.String("client_ip", clientIP))
				response.Abort(ctx, 429, response.CodeRateLimitExceeded, "")
				return
			}
		}

		// 3. 按用户限流
		if cfg.RateLimit.ByUser.RequestsPerSecond > 0 {
			if email := helper.GetEmail(ctx); email != "" {
				if !checkRateLimit(reqCtx, rdb, "user", email, cfg.RateLimit.ByUser.RequestsPerSecond, cfg.RateLimit.ByUser.WindowSeconds) {
					logger.Warn("user rate limit exceeded",
						zap.String("trace_id", traceID),
						zap.String("email", email))
					response.Abort(ctx, 429, response.CodeRateLimitExceeded, "")
					return
				}
			}
		}
	}
}

// checkRateLimit 检查限流（使用滑动窗口算法）
// dimension: 维度（global/ip/user）
// limit: 窗口内允许的请求数
// windowSeconds: 时间窗口（秒）
func checkRateLimit(ctx context.Context, rdb *redis.Client, dimension, key string, limit int, windowSeconds int) bool {
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	redisKey := infrds.RateLimitKey(dimension, key)
	now := time.Now()
	windowStart := now.Add(-time.Duration(windowSeconds) * time.Second).UnixMilli()

	// 使用 Redis Sorted Set 实现滑动窗口
	pipe := rdb.Pipeline()

	// 1. 移除窗口外的记录
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))

	// 2. 统计当前窗口内的请求数
	countCmd := pipe.ZCount(ctx, redisKey, strconv.FormatInt(windowStart, 10), "+inf")

	// 3. 添加当前请求
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})

	// 4. 设置过期时间
	pipe.Expire(ctx, redisKey, time.Duration(windowSeconds+10)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("rate limit check failed", zap.Error(err))
		return true // 降级：Redis 错误时不限流
	}

	count, err := countCmd.Result()
	if err != nil {
		logger.Warn("rate limit count failed", zap.Error(err))
		return true
	}
	return count < int64(limit)
}

// getClientIP 获取客户端真实IP
func getClientIP(ctx *beegocontext.Context) string {
	if ip := strings.TrimSpace(ctx.Input.Header("X-Real-IP")); ip != "" {
		return ip
	}
	if xff := ctx.Input.Header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(ctx.Request.RemoteAddr); err == nil {
		return host
	}
	return ctx.Request.RemoteAddr
}
