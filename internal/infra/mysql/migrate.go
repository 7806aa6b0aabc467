package mysql

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schemaSQL string

// Statements 拆分建表脚本（按分号；忽略空语句与注释行）
func Statements() []string {
	var out []string
	for _, part := range strings.Split(schemaSQL, ";") {
		var lines []string
		for _, l := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(l), "--") {
				continue
			}
			lines = append(lines, l)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Migrate 执行内嵌的建表脚本（CREATE TABLE IF NOT EXISTS，可重复执行）
func Migrate(ctx context.Context, db sqlx.ExecerContext) (int, error) {
	stmts := Statements()
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return i, fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return len(stmts), nil
}
