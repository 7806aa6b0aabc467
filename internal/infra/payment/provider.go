package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrSessionNotFound 支付平台拒绝该 session id（不存在或无权访问）
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrProcessor 支付平台调用失败（网络 / 5xx / 无法解析的响应）
	ErrProcessor = errors.New("payment processor error")
)

// 会话元数据键（与会话一起在支付平台侧保存，确认时原样带回）
const (
	MetaContestID = "contestId"
	MetaEmail     = "email"
)

// StatusPaid 支付平台的已支付状态
const StatusPaid = "paid"

// CheckoutParams 创建收银台会话参数
type CheckoutParams struct {
	ContestID   int64
	Email       string
	Price       decimal.Decimal // 主货币单位
	Name        string
	Description string
	Image       string
}

// Session 支付平台会话详情（确认阶段读取）
type Session struct {
	ID            string
	URL           string
	PaymentStatus string
	TransactionID string
	Currency      string
	AmountTotal   int64 // 最小货币单位
	CustomerEmail string
	Metadata      map[string]string
}

// Processor 外部支付平台
type Processor interface {
	Name() string

	// CreateCheckoutSession 开启收银台会话，返回跳转地址；不写本地存储
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error)

	// RetrieveSession 按 session id 读取会话详情
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}
