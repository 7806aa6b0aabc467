package model

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"contesthub-server/common"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mdb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mdb.Close() })
	return NewStore(sqlx.NewDb(mdb, "mysql")), mock
}

func columns(fields []interface{}) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = fmt.Sprint(f)
	}
	return out
}

func TestTryInsertOnce(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	p := &Payment{SessionID: "cs_1", Email: "p@x.com", ContestID: 3, Amount: decimal.RequireFromString("5.00"), Status: "paid"}

	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(11, 1))
	inserted, err := s.TryInsertOnce(ctx, p)
	if err != nil || !inserted || p.ID != 11 {
		t.Fatalf("first insert: inserted=%v id=%d err=%v", inserted, p.ID, err)
	}

	mock.ExpectExec("INSERT INTO payments").WillReturnError(&mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry 'cs_1' for key 'uk_session'"})
	inserted, err = s.TryInsertOnce(ctx, p)
	if err != nil || inserted {
		t.Fatalf("duplicate insert: inserted=%v err=%v", inserted, err)
	}

	mock.ExpectExec("INSERT INTO payments").WillReturnError(errors.New("connection reset"))
	if _, err := s.TryInsertOnce(ctx, p); err == nil {
		t.Fatal("other errors must propagate")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDeclareWinnerConditional(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	w := Winner{Name: "Alice", Email: "a@x.com"}

	mock.ExpectExec(`UPDATE contests SET winner_name = \?.*WHERE id = \? AND \(winner_name IS NULL OR winner_name = ''\)`).
		WithArgs("Alice", "a@x.com", "", int64(100), int64(100), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := s.DeclareWinner(ctx, 7, w, 100)
	if err != nil || !ok {
		t.Fatalf("first declare: %v %v", ok, err)
	}

	mock.ExpectExec("UPDATE contests SET winner_name").WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = s.DeclareWinner(ctx, 7, Winner{Name: "Bob"}, 200)
	if err != nil || ok {
		t.Fatalf("second declare must not apply: %v %v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIncrementCount(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`UPDATE contests SET count = count \+ 1`).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.IncrementCount(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	mock.ExpectExec(`UPDATE contests SET count = count \+ 1`).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.IncrementCount(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing contest: %v", err)
	}
}

func TestGetContest(t *testing.T) {
	s, mock := newMock(t)
	cols := columns(contestFields)
	vals := make([]driver.Value, len(cols))
	for i, c := range cols {
		switch c {
		case "id":
			vals[i] = int64(7)
		case "price", "prize_money":
			vals[i] = "10.00"
		case "status":
			vals[i] = "approved"
		case "creator_email":
			vals[i] = "c@x.com"
		case "deadline", "count", "created_at", "updated_at":
			vals[i] = int64(0)
		case "winner_name", "winner_email", "winner_image", "winner_declared_at":
			vals[i] = nil
		default:
			vals[i] = ""
		}
	}
	mock.ExpectQuery("SELECT .* FROM `contests`").WillReturnRows(sqlmock.NewRows(cols).AddRow(vals...))
	c, err := s.GetContest(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != 7 || c.CreatorEmail != "c@x.com" || !c.Price.Equal(decimal.NewFromInt(10)) || c.HasWinner() {
		t.Fatalf("contest = %+v", c)
	}

	mock.ExpectQuery("SELECT .* FROM `contests`").WillReturnRows(sqlmock.NewRows(cols))
	if _, err := s.GetContest(context.Background(), 8); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertSubmissionDuplicate(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("INSERT INTO submissions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO submissions").WillReturnError(&mysqldrv.MySQLError{Number: 1062})

	sub := &Submission{ContestID: 1, Email: "p@x.com", Task: "link"}
	if ok, err := s.InsertSubmission(context.Background(), sub); !ok || err != nil {
		t.Fatalf("first: %v %v", ok, err)
	}
	if ok, err := s.InsertSubmission(context.Background(), sub); ok || err != nil {
		t.Fatalf("second: %v %v", ok, err)
	}
}

func TestFindSubmission(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	cols := columns(common.EnumFields(Submission{}))
	mock.ExpectQuery("FROM `submissions` WHERE").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(3), int64(1), "p@x.com", "", "", "link", int64(100)))
	mock.ExpectQuery("FROM `submissions` WHERE").WillReturnRows(sqlmock.NewRows(cols))

	sub, err := s.FindSubmission(ctx, 1, "p@x.com")
	if err != nil || sub.ID != 3 || sub.Task != "link" {
		t.Fatalf("found = %+v %v", sub, err)
	}
	if _, err := s.FindSubmission(ctx, 1, "q@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}

func TestUpsertUserAndInbox(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO users .* ON DUPLICATE KEY UPDATE").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO users .* ON DUPLICATE KEY UPDATE").WillReturnResult(sqlmock.NewResult(1, 2))
	if created, err := s.UpsertUser(ctx, &User{Email: "u@x.com"}); !created || err != nil {
		t.Fatalf("first sign-in: %v %v", created, err)
	}
	if created, err := s.UpsertUser(ctx, &User{Email: "u@x.com"}); created || err != nil {
		t.Fatalf("second sign-in: %v %v", created, err)
	}

	mock.ExpectExec("INSERT INTO inbox").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO inbox").WillReturnResult(sqlmock.NewResult(0, 0))
	if first, err := UpsertInbox(ctx, s.DB(), "m1", "t", "{}", 1); !first || err != nil {
		t.Fatalf("inbox first: %v %v", first, err)
	}
	if first, err := UpsertInbox(ctx, s.DB(), "m1", "t", "{}", 1); first || err != nil {
		t.Fatalf("inbox dup: %v %v", first, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
