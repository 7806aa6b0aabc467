package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
)

// outbox 状态
const (
	OutboxPending int8 = 1
	OutboxSent    int8 = 2
	OutboxFailed  int8 = 3

	// OutboxMaxRetry 超过后标记为永久失败
	OutboxMaxRetry = 10
)

// Outbox 对应 outbox 表（业务事件待投递表）
type Outbox struct {
	ID         int64  `db:"id"`
	Topic      string `db:"topic"`
	BizKey     string `db:"biz_key"` // 业务键（消费端去重用）
	Payload    string `db:"payload"` // JSON
	Status     int8   `db:"status"`
	RetryCount int    `db:"retry_count"`
	LastError  string `db:"last_error"`
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
}

func (o *Outbox) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	o.Status, o.CreatedAt, o.UpdatedAt = OutboxPending, now, now

	sqlStr := "INSERT INTO outbox (topic, biz_key, payload, status, retry_count, last_error, created_at, updated_at) VALUES (?, ?, ?, ?, 0, '', ?, ?)"
	_, err := exec.ExecContext(ctx, sqlStr, o.Topic, o.BizKey, o.Payload, o.Status, now, now)
	return err
}

// OutboxRow 是调度器扫描用的轻量投影
type OutboxRow struct {
	ID      int64  `db:"id"`
	Topic   string `db:"topic"`
	BizKey  string `db:"biz_key"`
	Payload string `db:"payload"`
}

// ListOutboxPending 查询待发送且未超过重试上限的记录
func ListOutboxPending(ctx context.Context, exec sqlx.QueryerContext, limit int) ([]OutboxRow, error) {
	sqlStr := "SELECT id, topic, biz_key, payload FROM outbox WHERE status = ? AND retry_count < ? ORDER BY id ASC LIMIT ?"

	var list []OutboxRow
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, OutboxPending, OutboxMaxRetry, limit); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkOutboxSent 标记已发送
func MarkOutboxSent(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	sqlStr := "UPDATE outbox SET status = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, OutboxSent, time.Now().UnixMilli(), id)
	return err
}

// MarkOutboxFailed 记录失败；重试次数即将达到上限时标记为永久失败，否则保持待发送
func MarkOutboxFailed(ctx context.Context, exec sqlx.ExtContext, id int64, lastError string) error {
	sqlStr := "UPDATE outbox SET status = CASE WHEN retry_count >= ? THEN ? ELSE ? END, last_error = ?, retry_count = retry_count + 1, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, OutboxMaxRetry-1, OutboxFailed, OutboxPending, lastError, time.Now().UnixMilli(), id)
	return err
}

// CreateOutbox 序列化 payload 并写入 outbox
func CreateOutbox(ctx context.Context, exec sqlx.ExtContext, topic, bizKey string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	o := &Outbox{Topic: topic, BizKey: bizKey, Payload: string(b)}
	return o.Insert(ctx, exec)
}
