package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Inbox 对应 inbox 表（消费幂等落库表），message_id+topic 唯一
type Inbox struct {
	ID          int64  `db:"id"`
	MessageID   string `db:"message_id"`
	Topic       string `db:"topic"`
	Payload     string `db:"payload"`
	ProcessedAt int64  `db:"processed_at"`
	CreatedAt   int64  `db:"created_at"`
}

// UpsertInbox 按 message_id+topic 去重入库；返回 true 表示首次收到
func UpsertInbox(ctx context.Context, exec sqlx.ExtContext, messageID, topic, payload string, processedAtMs int64) (bool, error) {
	now := time.Now().UnixMilli()

	sqlStr := "INSERT INTO inbox (message_id, topic, payload, processed_at, created_at) VALUES (?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE processed_at=processed_at"
	res, err := exec.ExecContext(ctx, sqlStr, messageID, topic, payload, processedAtMs, now)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
