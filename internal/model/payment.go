package model

import (
	"context"

	"contesthub-server/common"
	infmysql "contesthub-server/internal/infra/mysql"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const tablePayments = "payments"

// Payment 对应 payments 表（session_id 唯一，只插入不更新）
// contest_* 字段为下单时的比赛快照，用于“我参加的比赛”展示
type Payment struct {
	ID            int64           `db:"id" json:"id"`
	SessionID     string          `db:"session_id" json:"sessionId"`
	TransactionID string          `db:"transaction_id" json:"transactionId"`
	Email         string          `db:"email" json:"email"`
	ContestID     int64           `db:"contest_id" json:"contestId"`
	Amount        decimal.Decimal `db:"amount" json:"amount"` // 主货币单位
	Currency      string          `db:"currency" json:"currency"`
	Status        string          `db:"status" json:"status"`
	ContestName   string          `db:"contest_name" json:"contestName"`
	ContestImage  string          `db:"contest_image" json:"contestImage"`
	ContestType   string          `db:"contest_type" json:"contestType"`
	PrizeMoney    decimal.Decimal `db:"prize_money" json:"prizeMoney"`
	Deadline      int64           `db:"deadline" json:"deadline"`
	PaidAt        int64           `db:"paid_at" json:"paidAt"`
}

var paymentFields = common.EnumFields(Payment{})

// TryInsertPayment 按 session_id 唯一键“仅插入一次”：
// 首次插入返回 true；唯一键冲突（已存在）返回 false, nil；不会覆盖已有记录
func TryInsertPayment(ctx context.Context, exec sqlx.ExtContext, p *Payment) (bool, error) {
	sqlStr := `INSERT INTO payments (session_id, transaction_id, email, contest_id, amount, currency, status,
	           contest_name, contest_image, contest_type, prize_money, deadline, paid_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := exec.ExecContext(ctx, sqlStr,
		p.SessionID, p.TransactionID, p.Email, p.ContestID, p.Amount, p.Currency, p.Status,
		p.ContestName, p.ContestImage, p.ContestType, p.PrizeMoney, p.Deadline, p.PaidAt)
	if err != nil {
		if infmysql.IsDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	id, _ := res.LastInsertId()
	p.ID = id
	return true, nil
}

// GetPaymentBySession 按 session_id 查询
func GetPaymentBySession(ctx context.Context, exec sqlx.QueryerContext, sessionID string) (*Payment, error) {
	var p Payment
	if err := common.SelectOneCtx(ctx, exec, &p, tablePayments, paymentFields, g.C("session_id").Eq(sessionID)); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindPaidPayment 查询 (contest, email) 的已支付记录
func FindPaidPayment(ctx context.Context, exec sqlx.QueryerContext, contestID int64, email, paidStatus string) (*Payment, error) {
	var p Payment
	err := common.SelectOneCtx(ctx, exec, &p, tablePayments, paymentFields,
		g.C("contest_id").Eq(contestID), g.C("email").Eq(email), g.C("status").Eq(paidStatus))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListPaymentsByEmail 查询用户的支付记录（按支付时间倒序）
func ListPaymentsByEmail(ctx context.Context, db sqlx.QueryerContext, email string, offset, limit uint) ([]Payment, error) {
	var list []Payment
	err := common.SelectAllCtx(ctx, &list, common.QueryArg{
		Db:     db,
		Table:  tablePayments,
		Fields: paymentFields,
		Ex:     []exp.Expression{g.C("email").Eq(email)},
		Order:  []exp.OrderedExpression{g.C("paid_at").Desc(), g.C("id").Desc()},
		Offset: offset,
		Limit:  limit,
	})
	return list, err
}
