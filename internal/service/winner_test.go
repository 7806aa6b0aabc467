package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"contesthub-server/internal/model"
)

func TestDeclareWinnerOnce(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	cid := st.seedContest(model.Contest{Name: "Essay", CreatorEmail: "c@x.com"})
	svc := NewWinnerService(st, st)

	first, err := svc.DeclareWinner(ctx, DeclareWinnerInput{ContestID: cid, Caller: "c@x.com", WinnerName: "Alice", WinnerEmail: "a@x.com"})
	if err != nil {
		t.Fatal(err)
	}
	if !first.Declared || first.ModifiedCount != 1 || first.Message != MsgWinnerDeclared {
		t.Fatalf("first = %+v", first)
	}

	second, err := svc.DeclareWinner(ctx, DeclareWinnerInput{ContestID: cid, Caller: "c@x.com", WinnerName: "Bob", WinnerEmail: "b@x.com"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Declared || second.ModifiedCount != 0 || second.Message != MsgAlreadyDeclared {
		t.Fatalf("second = %+v", second)
	}

	c := st.contest(cid)
	if c.WinnerName == nil || *c.WinnerName != "Alice" || *c.WinnerEmail != "a@x.com" {
		t.Fatalf("winner = %v", c.WinnerName)
	}
	if len(st.audits) != 1 || len(st.outboxTopics()) != 1 {
		t.Fatalf("audits=%d outbox=%d", len(st.audits), len(st.outboxTopics()))
	}
}

func TestDeclareWinnerConcurrent(t *testing.T) {
	st := newMemStore()
	cid := st.seedContest(model.Contest{Name: "Essay", CreatorEmail: "c@x.com"})
	svc := NewWinnerService(st, nil)

	names := []string{"Alice", "Bob", "Carol", "Dave", "Eve", "Frank"}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		declared []string
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			out, err := svc.DeclareWinner(context.Background(), DeclareWinnerInput{ContestID: cid, Caller: "c@x.com", WinnerName: name})
			if err != nil {
				t.Errorf("declare %s: %v", name, err)
				return
			}
			if out.Declared {
				mu.Lock()
				declared = append(declared, name)
				mu.Unlock()
			}
		}(name)
	}
	wg.Wait()

	if len(declared) != 1 {
		t.Fatalf("declared = %v, want exactly one", declared)
	}
	if c := st.contest(cid); *c.WinnerName != declared[0] {
		t.Fatalf("stored winner %q != declared %q", *c.WinnerName, declared[0])
	}
}

func TestDeclareWinnerRejections(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	cid := st.seedContest(model.Contest{Name: "Essay", CreatorEmail: "c@x.com"})
	svc := NewWinnerService(st, st)

	if _, err := svc.DeclareWinner(ctx, DeclareWinnerInput{ContestID: cid, Caller: "other@x.com", WinnerName: "Alice"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner: %v", err)
	}
	if _, err := svc.DeclareWinner(ctx, DeclareWinnerInput{ContestID: 999, Caller: "c@x.com", WinnerName: "Alice"}); !errors.Is(err, ErrContestNotFound) {
		t.Fatalf("missing contest: %v", err)
	}
	if _, err := svc.DeclareWinner(ctx, DeclareWinnerInput{ContestID: cid, Caller: "c@x.com", WinnerName: " "}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty name: %v", err)
	}
	if c := st.contest(cid); c.HasWinner() {
		t.Fatal("rejected declarations must not write")
	}
}
