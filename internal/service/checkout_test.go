package service

import (
	"context"
	"errors"
	"testing"

	"contesthub-server/internal/infra/payment"
	"contesthub-server/internal/model"

	"github.com/shopspring/decimal"
)

func TestStartCheckout(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	cid := st.seedContest(model.Contest{Name: "Poster", Price: decimal.NewFromInt(10)})

	var got payment.CheckoutParams
	proc := &MockProcessor{CreateFn: func(_ context.Context, p payment.CheckoutParams) (*payment.Session, error) {
		got = p
		return &payment.Session{ID: "cs_new", URL: "https://pay.example/cs_new"}, nil
	}}
	svc := NewCheckoutService(st, proc)

	out, err := svc.StartCheckout(ctx, CheckoutInput{ContestID: cid, Email: " p@x.com ", Price: decimal.RequireFromString("10.00"), Name: "Poster"})
	if err != nil {
		t.Fatal(err)
	}
	if out.URL != "https://pay.example/cs_new" || out.SessionID != "cs_new" {
		t.Fatalf("out = %+v", out)
	}
	if got.ContestID != cid || got.Email != "p@x.com" || !got.Price.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("params = %+v", got)
	}
	if st.paymentCount() != 0 {
		t.Fatal("checkout must not write payments")
	}
}

func TestStartCheckoutRejectsBeforeProcessor(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	cid := st.seedContest(model.Contest{Name: "Poster"})
	proc := &MockProcessor{CreateFn: func(context.Context, payment.CheckoutParams) (*payment.Session, error) {
		return &payment.Session{ID: "cs", URL: "u"}, nil
	}}
	svc := NewCheckoutService(st, proc)

	cases := []CheckoutInput{
		{ContestID: cid, Email: "p@x.com", Price: decimal.Zero},
		{ContestID: cid, Email: "p@x.com", Price: decimal.NewFromInt(-5)},
		{ContestID: cid, Email: "", Price: decimal.NewFromInt(5)},
		{ContestID: 0, Email: "p@x.com", Price: decimal.NewFromInt(5)},
	}
	for _, in := range cases {
		if _, err := svc.StartCheckout(ctx, in); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("input %+v: err = %v", in, err)
		}
	}
	if create, _ := proc.calls(); create != 0 {
		t.Fatalf("processor called %d times", create)
	}
}

func TestStartCheckoutAlreadyPaid(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	cid := st.seedContest(model.Contest{Name: "Poster"})
	if _, err := st.TryInsertOnce(ctx, &model.Payment{SessionID: "cs_old", ContestID: cid, Email: "p@x.com", Status: "paid"}); err != nil {
		t.Fatal(err)
	}
	proc := &MockProcessor{}
	svc := NewCheckoutService(st, proc)

	if _, err := svc.StartCheckout(ctx, CheckoutInput{ContestID: cid, Email: "p@x.com", Price: decimal.NewFromInt(5)}); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("err = %v", err)
	}
	if create, _ := proc.calls(); create != 0 {
		t.Fatal("processor must not be called for a paid participant")
	}
}

func TestStartCheckoutProcessorFailure(t *testing.T) {
	st := newMemStore()
	proc := &MockProcessor{CreateFn: func(context.Context, payment.CheckoutParams) (*payment.Session, error) {
		return nil, payment.ErrProcessor
	}}
	svc := NewCheckoutService(st, proc)
	_, err := svc.StartCheckout(context.Background(), CheckoutInput{ContestID: 1, Email: "p@x.com", Price: decimal.NewFromInt(5)})
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("err = %v", err)
	}
}
