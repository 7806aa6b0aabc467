package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// New 根据配置创建 Redis 客户端；addr 为空返回 nil（Redis 为可选依赖）
func New(addr, password string, db int) *goredis.Client {
	if addr == "" {
		return nil
	}
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   1,
	})
}

// Ping 在给定超时时间内探测 Redis 连接是否可用；未配置视为可用
func Ping(ctx context.Context, rdb *goredis.Client, timeout time.Duration) error {
	if rdb == nil {
		return nil
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return rdb.Ping(c).Err()
}
