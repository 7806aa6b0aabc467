package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"contesthub-server/common/constant"
	"contesthub-server/common/helper"
	"contesthub-server/common/logger"
	"contesthub-server/internal/infra/payment"
	infrds "contesthub-server/internal/infra/redis"
	"contesthub-server/internal/metrics"
	"contesthub-server/internal/model"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	MsgPaymentRecorded = "payment recorded"
	MsgAlreadyExists   = "already exists"

	// 结算结果缓存 TTL：覆盖支付平台与前端的重试窗口
	settleResultTTL = 24 * time.Hour
)

type SettleOutput struct {
	TransactionID string `json:"transactionId"`
	ContestID     int64  `json:"contestId"`
	Duplicate     bool   `json:"duplicate"`
	Message       string `json:"message"`
}

type SettlementService interface {
	// Settle 按支付平台 session id 确认支付并落库，对重复调用幂等：
	// 每个已支付会话最多一条支付记录，参赛人数最多 +1
	Settle(ctx context.Context, sessionID string) (*SettleOutput, error)
}

type settlementService struct {
	processor payment.Processor
	payments  PaymentStore
	contests  ContestStore
	events    EventRecorder
	rdb       *goredis.Client // 可选：结果缓存
}

func NewSettlementService(processor payment.Processor, payments PaymentStore, contests ContestStore, events EventRecorder, rdb *goredis.Client) SettlementService {
	return &settlementService{processor: processor, payments: payments, contests: contests, events: events, rdb: rdb}
}

func (s *settlementService) Settle(ctx context.Context, sessionID string) (*SettleOutput, error) {
	start := time.Now()
	result := metrics.SettleFail
	defer func() { metrics.RecordSettlement(result, start) }()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrInvalidRequest)
	}

	// Redis 快路径：该会话已结算过，直接返回首次结果
	if cached := s.cachedResult(ctx, sessionID); cached != nil {
		result = metrics.SettleDuplicate
		logger.DebugCtx(ctx, "settle served from cache", zap.String("session_id", sessionID))
		return cached, nil
	}

	// 1. 从支付平台读取会话详情
	sess, err := s.processor.RetrieveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		logger.ErrorCtx(ctx, "retrieve checkout session failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	if sess.PaymentStatus != payment.StatusPaid {
		logger.WarnCtx(ctx, "settle rejected: session not paid",
			zap.String("session_id", sessionID), zap.String("payment_status", sess.PaymentStatus))
		return nil, ErrPaymentNotCompleted
	}
	contestID, email, err := correlation(sess)
	if err != nil {
		return nil, err
	}

	// 2. (contest, payer) 已有已支付记录：不再写入
	if existing, err := s.payments.FindPaidPayment(ctx, contestID, email); err == nil && existing != nil {
		result = metrics.SettleDuplicate
		out := &SettleOutput{TransactionID: existing.TransactionID, ContestID: contestID, Duplicate: true, Message: MsgAlreadyExists}
		s.cacheResult(ctx, sessionID, out)
		return out, nil
	} else if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	// 3. 读取比赛（用于快照字段）
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	// 4. 构造支付记录（金额：最小单位 / 100）
	currency := sess.Currency
	if currency == "" {
		currency = "usd"
	}
	p := &model.Payment{
		SessionID:     sessionID,
		TransactionID: sess.TransactionID,
		Email:         email,
		ContestID:     contestID,
		Amount:        helper.FromMinorUnits(sess.AmountTotal),
		Currency:      currency,
		Status:        sess.PaymentStatus,
		ContestName:   contest.Name,
		ContestImage:  contest.Image,
		ContestType:   contest.ContestType,
		PrizeMoney:    contest.PrizeMoney,
		Deadline:      contest.Deadline,
		PaidAt:        time.Now().UnixMilli(),
	}

	// 5-6 不随请求取消：插入成功后必须完成递增，否则重试只会走重复分支
	wctx := context.WithoutCancel(ctx)

	// 5. 按 session id 唯一键仅插入一次：并发确认只有一方插入成功
	inserted, err := s.payments.TryInsertOnce(wctx, p)
	if err != nil {
		logger.ErrorCtx(ctx, "insert payment failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !inserted {
		result = metrics.SettleDuplicate
		out := &SettleOutput{TransactionID: sess.TransactionID, ContestID: contestID, Duplicate: true, Message: MsgAlreadyExists}
		if prev, err := s.payments.GetPaymentBySession(ctx, sessionID); err == nil {
			out.TransactionID = prev.TransactionID
		}
		s.cacheResult(ctx, sessionID, out)
		logger.InfoCtx(ctx, "settle duplicate: payment already recorded", zap.String("session_id", sessionID))
		return out, nil
	}

	// 6. 仅首插分支递增参赛人数
	if err := s.contests.IncrementCount(wctx, contestID); err != nil {
		// 支付记录已落库，后续重试会走重复分支而不会再递增，需人工核对
		logger.ErrorCtx(ctx, "increment contest count failed after payment insert",
			zap.String("session_id", sessionID), zap.Int64("contest_id", contestID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	s.recordEvent(wctx, p)

	result = metrics.SettleFirst
	out := &SettleOutput{TransactionID: p.TransactionID, ContestID: contestID, Message: MsgPaymentRecorded}
	s.cacheResult(ctx, sessionID, &SettleOutput{TransactionID: p.TransactionID, ContestID: contestID, Duplicate: true, Message: MsgAlreadyExists})
	logger.InfoCtx(ctx, "payment recorded",
		zap.String("session_id", sessionID), zap.Int64("contest_id", contestID),
		zap.String("email", email), zap.String("amount", p.Amount.StringFixed(2)))
	return out, nil
}

// correlation 从会话元数据取回 (contestId, email)
func correlation(sess *payment.Session) (int64, string, error) {
	raw := strings.TrimSpace(sess.Metadata[payment.MetaContestID])
	contestID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || contestID <= 0 {
		return 0, "", fmt.Errorf("%w: session metadata missing contestId", ErrInvalidRequest)
	}
	email := strings.TrimSpace(sess.Metadata[payment.MetaEmail])
	if email == "" {
		email = strings.TrimSpace(sess.CustomerEmail)
	}
	if email == "" {
		return 0, "", fmt.Errorf("%w: session metadata missing email", ErrInvalidRequest)
	}
	return contestID, email, nil
}

func (s *settlementService) recordEvent(ctx context.Context, p *model.Payment) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"event":          constant.TopicPaymentRecorded,
		"session_id":     p.SessionID,
		"transaction_id": p.TransactionID,
		"contest_id":     p.ContestID,
		"email":          p.Email,
		"amount":         p.Amount.StringFixed(2),
		"currency":       p.Currency,
		"paid_at":        p.PaidAt,
	}
	if err := s.events.RecordOutbox(ctx, constant.TopicPaymentRecorded, p.SessionID, payload); err != nil {
		logger.WarnCtx(ctx, "outbox write failed", zap.String("topic", constant.TopicPaymentRecorded), zap.Error(err))
	}
}

func (s *settlementService) cachedResult(ctx context.Context, sessionID string) *SettleOutput {
	if s.rdb == nil {
		return nil
	}
	bs, err := s.rdb.Get(ctx, infrds.SettleResultKey(sessionID)).Bytes()
	if err != nil || len(bs) == 0 {
		return nil
	}
	var out SettleOutput
	if json.Unmarshal(bs, &out) != nil {
		return nil
	}
	return &out
}

func (s *settlementService) cacheResult(ctx context.Context, sessionID string, out *SettleOutput) {
	if s.rdb == nil {
		return
	}
	bs, _ := json.Marshal(out)
	if err := s.rdb.Set(ctx, infrds.SettleResultKey(sessionID), bs, settleResultTTL).Err(); err != nil {
		logger.WarnCtx(ctx, "cache settle result failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
