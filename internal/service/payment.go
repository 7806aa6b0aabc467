package service

import (
	"context"
	"errors"
	"fmt"

	"contesthub-server/internal/model"
)

type PaymentService interface {
	// Mine 当前用户的支付记录（即参加过的比赛）
	Mine(ctx context.Context, email string, p Page) ([]model.Payment, error)
	// HasPaid 是否已支付该比赛
	HasPaid(ctx context.Context, contestID int64, email string) (bool, error)
}

type paymentService struct {
	payments PaymentStore
}

func NewPaymentService(payments PaymentStore) PaymentService {
	return &paymentService{payments: payments}
}

func (s *paymentService) Mine(ctx context.Context, email string, p Page) ([]model.Payment, error) {
	off, lim := p.OffsetLimit()
	list, err := s.payments.ListPaymentsByEmail(ctx, email, off, lim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if list == nil {
		list = []model.Payment{}
	}
	return list, nil
}

func (s *paymentService) HasPaid(ctx context.Context, contestID int64, email string) (bool, error) {
	if contestID <= 0 {
		return false, fmt.Errorf("%w: invalid contest id", ErrInvalidRequest)
	}
	_, err := s.payments.FindPaidPayment(ctx, contestID, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, model.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
}
