package model

import (
	"context"
	"time"

	"contesthub-server/common"
	infmysql "contesthub-server/internal/infra/mysql"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

// Submission 对应 submissions 表（(contest_id, email) 唯一）
type Submission struct {
	ID        int64  `db:"id" json:"id"`
	ContestID int64  `db:"contest_id" json:"contestId"`
	Email     string `db:"email" json:"email"`
	Name      string `db:"name" json:"name"`
	Image     string `db:"image" json:"image"`
	Task      string `db:"task" json:"task"`
	CreatedAt int64  `db:"created_at" json:"createdAt"`
}

// InsertSubmission 插入作品；同一用户同一比赛重复提交返回 false, nil
func InsertSubmission(ctx context.Context, exec sqlx.ExtContext, s *Submission) (bool, error) {
	s.CreatedAt = time.Now().UnixMilli()
	sqlStr := "INSERT INTO submissions (contest_id, email, name, image, task, created_at) VALUES (?, ?, ?, ?, ?, ?)"
	res, err := exec.ExecContext(ctx, sqlStr, s.ContestID, s.Email, s.Name, s.Image, s.Task, s.CreatedAt)
	if err != nil {
		if infmysql.IsDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	id, _ := res.LastInsertId()
	s.ID = id
	return true, nil
}

// ListSubmissions 查询比赛的全部作品
func ListSubmissions(ctx context.Context, db sqlx.QueryerContext, contestID int64) ([]Submission, error) {
	var list []Submission
	err := common.SelectAllCtx(ctx, &list, common.QueryArg{
		Db:     db,
		Table:  "submissions",
		Fields: common.EnumFields(Submission{}),
		Ex:     []exp.Expression{g.C("contest_id").Eq(contestID)},
		Order:  []exp.OrderedExpression{g.C("id").Asc()},
	})
	return list, err
}

// FindSubmission 查询某用户在比赛中的作品，不存在返回 ErrNotFound
func FindSubmission(ctx context.Context, db sqlx.QueryerContext, contestID int64, email string) (*Submission, error) {
	var s Submission
	err := common.SelectOneCtx(ctx, db, &s, "submissions", common.EnumFields(Submission{}),
		g.C("contest_id").Eq(contestID), g.C("email").Eq(email))
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}
