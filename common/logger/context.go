package logger

import (
	"context"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// GetTraceID 从 context 中获取 trace_id（由 RequestIDFilter 注入）
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTraceID 将 trace_id 注入到 context 中，供 service 层日志关联请求
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey, traceID)
}
