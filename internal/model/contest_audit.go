package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// ContestAudit 对应 contest_audit 表（状态机 / 获胜者审计）
// event_type: 1=status_action 2=winner_declared 3=content_updated
// prev_state/next_state 使用字符串快照，便于直观查询
type ContestAudit struct {
	ID        int64  `db:"id"`
	ContestID int64  `db:"contest_id"`
	EventType int8   `db:"event_type"`
	PrevState string `db:"prev_state"`
	NextState string `db:"next_state"`
	Operator  string `db:"operator"`
	Payload   string `db:"payload"`
	TraceID   string `db:"trace_id"`
	CreatedAt int64  `db:"created_at"`
}

func (e *ContestAudit) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	e.CreatedAt = time.Now().UnixMilli()

	sqlStr := "INSERT INTO contest_audit (contest_id, event_type, prev_state, next_state, operator, payload, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{e.ContestID, e.EventType, e.PrevState, e.NextState, e.Operator, e.Payload, e.TraceID, e.CreatedAt}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}
