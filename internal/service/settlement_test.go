package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"contesthub-server/internal/infra/payment"
	infrds "contesthub-server/internal/infra/redis"
	"contesthub-server/internal/model"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func paidSession(id string, contestID int64, email string, cents int64) *payment.Session {
	return &payment.Session{
		ID:            id,
		PaymentStatus: payment.StatusPaid,
		TransactionID: "pi_" + id,
		Currency:      "usd",
		AmountTotal:   cents,
		Metadata: map[string]string{
			payment.MetaContestID: strconv.FormatInt(contestID, 10),
			payment.MetaEmail:     email,
		},
	}
}

func newSettlementFixture(t *testing.T, rdb *goredis.Client) (*memStore, *MockProcessor, SettlementService, int64) {
	t.Helper()
	st := newMemStore()
	cid := st.seedContest(model.Contest{Name: "Logo Design", CreatorEmail: "c@x.com", Price: decimal.NewFromInt(10)})
	proc := &MockProcessor{RetrieveFn: paidSessions(map[string]*payment.Session{
		"cs_1": paidSession("cs_1", cid, "p@x.com", 1000),
		"cs_2": paidSession("cs_2", cid, "q@x.com", 1000),
	})}
	return st, proc, NewSettlementService(proc, st, st, st, rdb), cid
}

func TestSettleTwiceRecordsOnce(t *testing.T) {
	st, _, svc, cid := newSettlementFixture(t, nil)
	ctx := context.Background()

	first, err := svc.Settle(ctx, "cs_1")
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if first.Message != MsgPaymentRecorded || first.Duplicate || first.TransactionID != "pi_cs_1" || first.ContestID != cid {
		t.Fatalf("first settle = %+v", first)
	}

	second, err := svc.Settle(ctx, "cs_1")
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if second.Message != MsgAlreadyExists || !second.Duplicate || second.TransactionID != "pi_cs_1" {
		t.Fatalf("second settle = %+v", second)
	}

	if n := st.paymentCount(); n != 1 {
		t.Fatalf("payments = %d, want 1", n)
	}
	if c := st.contest(cid); c.Count != 1 {
		t.Fatalf("count = %d, want 1", c.Count)
	}
	p, err := st.GetPaymentBySession(ctx, "cs_1")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Amount.Equal(decimal.NewFromInt(10)) || p.Email != "p@x.com" || p.ContestName != "Logo Design" {
		t.Fatalf("payment = %+v", p)
	}
	if topics := st.outboxTopics(); len(topics) != 1 {
		t.Fatalf("outbox = %v, want one payment event", topics)
	}
}

func TestSettleDistinctPayersCountEach(t *testing.T) {
	st, _, svc, cid := newSettlementFixture(t, nil)
	ctx := context.Background()
	for _, id := range []string{"cs_1", "cs_2", "cs_1", "cs_2"} {
		if _, err := svc.Settle(ctx, id); err != nil {
			t.Fatalf("settle %s: %v", id, err)
		}
	}
	if c := st.contest(cid); c.Count != 2 {
		t.Fatalf("count = %d, want 2", c.Count)
	}
	if n := st.paymentCount(); n != 2 {
		t.Fatalf("payments = %d, want 2", n)
	}
}

func TestSettleConcurrent(t *testing.T) {
	st, _, svc, cid := newSettlementFixture(t, nil)

	const n = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		recorded int
		dup      int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Settle(context.Background(), "cs_1")
			if err != nil {
				t.Errorf("settle: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if out.Message == MsgPaymentRecorded {
				recorded++
			} else {
				dup++
			}
		}()
	}
	wg.Wait()

	if recorded != 1 || dup != n-1 {
		t.Fatalf("recorded=%d dup=%d", recorded, dup)
	}
	if got := st.paymentCount(); got != 1 {
		t.Fatalf("payments = %d, want 1", got)
	}
	if c := st.contest(cid); c.Count != 1 {
		t.Fatalf("count = %d, want 1", c.Count)
	}
}

func TestSettleCachedResultSkipsProcessor(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st, proc, svc, cid := newSettlementFixture(t, rdb)
	ctx := context.Background()

	if _, err := svc.Settle(ctx, "cs_1"); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists(infrds.SettleResultKey("cs_1")) {
		t.Fatal("settle result not cached")
	}

	out, err := svc.Settle(ctx, "cs_1")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Duplicate || out.Message != MsgAlreadyExists || out.TransactionID != "pi_cs_1" {
		t.Fatalf("cached = %+v", out)
	}
	if _, retrieve := proc.calls(); retrieve != 1 {
		t.Fatalf("processor retrieve calls = %d, want 1", retrieve)
	}
	if c := st.contest(cid); c.Count != 1 {
		t.Fatalf("count = %d, want 1", c.Count)
	}
}

func TestSettleRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("empty session", func(t *testing.T) {
		_, _, svc, _ := newSettlementFixture(t, nil)
		if _, err := svc.Settle(ctx, "  "); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		st, _, svc, cid := newSettlementFixture(t, nil)
		if _, err := svc.Settle(ctx, "cs_missing"); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("err = %v", err)
		}
		if st.paymentCount() != 0 || st.contest(cid).Count != 0 {
			t.Fatal("rejected settle must not write")
		}
	})

	t.Run("processor failure", func(t *testing.T) {
		st := newMemStore()
		proc := &MockProcessor{RetrieveFn: func(context.Context, string) (*payment.Session, error) {
			return nil, payment.ErrProcessor
		}}
		svc := NewSettlementService(proc, st, st, st, nil)
		if _, err := svc.Settle(ctx, "cs_1"); !errors.Is(err, ErrExternalService) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("unpaid session", func(t *testing.T) {
		st := newMemStore()
		cid := st.seedContest(model.Contest{Name: "c"})
		sess := paidSession("cs_open", cid, "p@x.com", 1000)
		sess.PaymentStatus = "unpaid"
		svc := NewSettlementService(&MockProcessor{RetrieveFn: paidSessions(map[string]*payment.Session{"cs_open": sess})}, st, st, st, nil)
		if _, err := svc.Settle(ctx, "cs_open"); !errors.Is(err, ErrPaymentNotCompleted) {
			t.Fatalf("err = %v", err)
		}
		if st.paymentCount() != 0 || st.contest(cid).Count != 0 {
			t.Fatal("unpaid settle must not write")
		}
	})

	t.Run("missing metadata", func(t *testing.T) {
		st := newMemStore()
		sess := paidSession("cs_meta", 1, "p@x.com", 1000)
		sess.Metadata = nil
		svc := NewSettlementService(&MockProcessor{RetrieveFn: paidSessions(map[string]*payment.Session{"cs_meta": sess})}, st, st, st, nil)
		if _, err := svc.Settle(ctx, "cs_meta"); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("contest gone", func(t *testing.T) {
		st := newMemStore()
		svc := NewSettlementService(&MockProcessor{RetrieveFn: paidSessions(map[string]*payment.Session{
			"cs_gone": paidSession("cs_gone", 999, "p@x.com", 1000),
		})}, st, st, st, nil)
		if _, err := svc.Settle(ctx, "cs_gone"); !errors.Is(err, ErrContestNotFound) {
			t.Fatalf("err = %v", err)
		}
		if st.paymentCount() != 0 {
			t.Fatal("no payment expected")
		}
	})
}

func TestSettleIncrementFailureDoesNotDoubleCount(t *testing.T) {
	st, _, svc, cid := newSettlementFixture(t, nil)
	ctx := context.Background()

	st.failIncrement = errors.New("lock wait timeout")
	if _, err := svc.Settle(ctx, "cs_1"); !errors.Is(err, ErrStore) {
		t.Fatalf("err = %v, want ErrStore", err)
	}
	st.mu.Lock()
	st.failIncrement = nil
	st.mu.Unlock()

	out, err := svc.Settle(ctx, "cs_1")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Duplicate {
		t.Fatalf("retry = %+v, want duplicate", out)
	}
	if c := st.contest(cid); c.Count != 0 {
		t.Fatalf("count = %d, retry must not increment", c.Count)
	}
}

// cancelingStore 在支付记录插入后取消请求 context，IncrementCount 与数据库驱动一样遵守取消
type cancelingStore struct {
	*memStore
	cancel context.CancelFunc
}

func (c *cancelingStore) TryInsertOnce(ctx context.Context, p *model.Payment) (bool, error) {
	ok, err := c.memStore.TryInsertOnce(ctx, p)
	c.cancel()
	return ok, err
}

func (c *cancelingStore) IncrementCount(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.memStore.IncrementCount(ctx, id)
}

func TestSettleClientGoneAfterInsertStillCounts(t *testing.T) {
	st, proc, _, cid := newSettlementFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cs := &cancelingStore{memStore: st, cancel: cancel}
	svc := NewSettlementService(proc, cs, cs, st, nil)

	first, err := svc.Settle(ctx, "cs_1")
	if err != nil {
		t.Fatalf("settle after cancel: %v", err)
	}
	if first.Duplicate || first.Message != MsgPaymentRecorded {
		t.Fatalf("first = %+v", first)
	}

	again, err := svc.Settle(context.Background(), "cs_1")
	if err != nil || !again.Duplicate {
		t.Fatalf("retry = %+v %v", again, err)
	}
	if n := st.paymentCount(); n != 1 {
		t.Fatalf("payments = %d, want 1", n)
	}
	if c := st.contest(cid); c.Count != 1 {
		t.Fatalf("count = %d, want 1", c.Count)
	}
	if topics := st.outboxTopics(); len(topics) != 1 {
		t.Fatalf("outbox = %v, want one payment event", topics)
	}
}
