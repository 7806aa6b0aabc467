package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"contesthub-server/common/helper"
	"contesthub-server/common/logger"
	"contesthub-server/internal/config"
	"contesthub-server/internal/infra/payment"
	"contesthub-server/internal/metrics"
	"contesthub-server/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutInput 发起支付参数
type CheckoutInput struct {
	ContestID   int64
	Email       string
	Price       decimal.Decimal
	Name        string
	Description string
	Image       string
}

type CheckoutOutput struct {
	URL       string
	SessionID string
}

type CheckoutService interface {
	// StartCheckout 校验请求并在支付平台开启会话；本地存储不写入任何记录
	StartCheckout(ctx context.Context, in CheckoutInput) (*CheckoutOutput, error)
}

type checkoutService struct {
	payments  PaymentStore
	processor payment.Processor
}

func NewCheckoutService(payments PaymentStore, processor payment.Processor) CheckoutService {
	return &checkoutService{payments: payments, processor: processor}
}

func (s *checkoutService) StartCheckout(ctx context.Context, in CheckoutInput) (*CheckoutOutput, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.ContestID <= 0 || in.Email == "" {
		metrics.RecordCheckout("rejected")
		return nil, fmt.Errorf("%w: contestId and email are required", ErrInvalidRequest)
	}

	// 金额按最小货币单位比较，低于最小单位（默认 1 分）直接拒绝，不请求支付平台
	minCents := config.GetThreshold(config.ThresholdMinPriceCents, 1)
	if minCents < 1 {
		minCents = 1
	}
	if !in.Price.IsPositive() || helper.ToMinorUnits(in.Price) < minCents {
		metrics.RecordCheckout("rejected")
		return nil, fmt.Errorf("%w: price must be at least %s", ErrInvalidRequest, helper.FromMinorUnits(minCents).StringFixed(2))
	}
	if strings.TrimSpace(in.Name) == "" {
		in.Name = fmt.Sprintf("Contest #%d", in.ContestID)
	}

	paid, err := s.payments.FindPaidPayment(ctx, in.ContestID, in.Email)
	switch {
	case err == nil && paid != nil:
		metrics.RecordCheckout("rejected")
		logger.InfoCtx(ctx, "checkout rejected: already paid",
			zap.Int64("contest_id", in.ContestID), zap.String("email", in.Email), zap.String("session_id", paid.SessionID))
		return nil, ErrAlreadyPaid
	case err != nil && !errors.Is(err, model.ErrNotFound):
		metrics.RecordCheckout("fail")
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	sess, err := s.processor.CreateCheckoutSession(ctx, payment.CheckoutParams{
		ContestID:   in.ContestID,
		Email:       in.Email,
		Price:       in.Price,
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
	})
	if err != nil {
		metrics.RecordCheckout("fail")
		logger.ErrorCtx(ctx, "create checkout session failed",
			zap.String("provider", s.processor.Name()), zap.Int64("contest_id", in.ContestID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	metrics.RecordCheckout("success")
	logger.InfoCtx(ctx, "checkout session created",
		zap.String("provider", s.processor.Name()), zap.String("session_id", sess.ID),
		zap.Int64("contest_id", in.ContestID), zap.String("email", in.Email))
	return &CheckoutOutput{URL: sess.URL, SessionID: sess.ID}, nil
}
