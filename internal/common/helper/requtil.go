package helper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"github.com/shopspring/decimal"
)

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	if len(ctx.Input.RequestBody) > 0 {
		return io.LimitReader(bytes.NewReader(ctx.Input.RequestBody), defaultJSONMaxBytes)
	}
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// DecodeJSON 解析 JSON 请求体，失败返回可读的错误消息
func DecodeJSON[T any](ctx *beegocontext.Context) (T, bool, string) {
	var out T
	if ctx.Request.Body == nil && len(ctx.Input.RequestBody) == 0 {
		return out, false, "request body is required"
	}
	if err := json.NewDecoder(jsonBodyReader(ctx)).Decode(&out); err != nil {
		if err == io.EOF {
			return out, false, "request body is required"
		}
		return out, false, "invalid json body"
	}
	return out, true, ""
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Request-Id")); h != "" {
		return h
	}
	return ""
}

// GetEmail 认证过滤器注入的当前用户 email
func GetEmail(ctx *beegocontext.Context) string {
	if v, ok := ctx.Input.GetData("email").(string); ok {
		return v
	}
	return ""
}

// ParseID 解析路径参数中的正整数 ID（如 :id）
func ParseID(ctx *beegocontext.Context, key string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(ctx.Input.Param(key)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// QueryInt 读取整数查询参数，缺省或非法时返回 def
func QueryInt(ctx *beegocontext.Context, key string, def int) int {
	s := strings.TrimSpace(ctx.Input.Query(key))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// 金额格式校验：非负，最多两位小数（预编译正则）
var moneyRe = regexp.MustCompile(`^(?:0|[1-9]\d*)(?:\.\d{1,2})?$`)

// IsMoneyFormat 判断金额格式
func IsMoneyFormat(s string) bool {
	return moneyRe.MatchString(strings.TrimSpace(s))
}

// Money 兼容 JSON 数字与字符串两种金额写法（"10.5" 或 10.5）
type Money struct {
	decimal.Decimal
	Set bool
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	m.Decimal, m.Set = d, true
	return nil
}

// Millis 兼容毫秒时间戳与 RFC3339 字符串两种截止时间写法
type Millis int64

func (t *Millis) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" || s == `""` {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*t = Millis(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("invalid time %s", s)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
		if ts, err := time.Parse(layout, str); err == nil {
			*t = Millis(ts.UnixMilli())
			return nil
		}
	}
	return fmt.Errorf("invalid time %q", str)
}

// ID 兼容 JSON 数字与字符串两种 ID 写法（123 或 "123"）
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", s)
	}
	*id = ID(n)
	return nil
}
