package mysql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contesthub-server/common/logger"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Options 连接池参数
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open 建立 MySQL 连接池并探活；进程启动时调用一次，句柄注入各组件
func Open(ctx context.Context, opt Options) (*sqlx.DB, error) {
	if strings.TrimSpace(opt.DSN) == "" {
		return nil, errors.New("mysql dsn is empty")
	}
	db, err := sqlx.Open("mysql", withParseTime(opt.DSN))
	if err != nil {
		return nil, fmt.Errorf("sqlx open: %w", err)
	}

	// 连接池参数
	db.SetMaxOpenConns(opt.MaxOpenConns)
	db.SetMaxIdleConns(opt.MaxIdleConns)
	if opt.ConnMaxLifetime <= 0 {
		opt.ConnMaxLifetime = 2 * time.Minute
	}
	db.SetConnMaxLifetime(opt.ConnMaxLifetime)
	db.SetConnMaxIdleTime(1 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}

	// 会话级超时，降低锁等待时长
	if _, err := db.ExecContext(ctx, "SET SESSION innodb_lock_wait_timeout = ?", 5); err != nil {
		logger.Warn("SET innodb_lock_wait_timeout failed", zap.Error(err))
	}
	return db, nil
}

// withParseTime 追加 parseTime/loc 参数（已存在则不覆盖）
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "parseTime=true&loc=Local"
}

// Ping 就绪探测
func Ping(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	if db == nil {
		return errors.New("mysql not initialized")
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(c)
}

// IsDuplicateKey 判断是否唯一键冲突（MySQL 1062）
func IsDuplicateKey(err error) bool {
	var me *mysqldrv.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return false
}
