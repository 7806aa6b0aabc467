package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"
)

func TestIsDuplicateKey(t *testing.T) {
	if !IsDuplicateKey(&mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry"}) {
		t.Fatal("1062 should be duplicate key")
	}
	wrapped := errors.Join(errors.New("insert payment"), &mysqldrv.MySQLError{Number: 1062})
	if !IsDuplicateKey(wrapped) {
		t.Fatal("wrapped 1062 should be duplicate key")
	}
	if IsDuplicateKey(&mysqldrv.MySQLError{Number: 1213}) {
		t.Fatal("deadlock is not duplicate key")
	}
	if IsDuplicateKey(nil) {
		t.Fatal("nil is not duplicate key")
	}
}

func TestWithParseTime(t *testing.T) {
	cases := map[string]string{
		"u:p@tcp(h:3306)/db":                    "u:p@tcp(h:3306)/db?parseTime=true&loc=Local",
		"u:p@tcp(h:3306)/db?charset=utf8mb4":    "u:p@tcp(h:3306)/db?charset=utf8mb4&parseTime=true&loc=Local",
		"u:p@tcp(h:3306)/db?parseTime=false&x=1": "u:p@tcp(h:3306)/db?parseTime=false&x=1",
	}
	for in, want := range cases {
		if got := withParseTime(in); got != want {
			t.Errorf("withParseTime(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	stmts := Statements()
	if len(stmts) != 7 {
		t.Fatalf("expected 7 statements, got %d", len(stmts))
	}
	for _, s := range stmts {
		if !strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS") {
			t.Fatalf("unexpected statement: %.40s", s)
		}
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	n, err := Migrate(context.Background(), db)
	if err != nil || n != len(stmts) {
		t.Fatalf("Migrate = %d, %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
