package model

import (
	"context"
	"time"

	"contesthub-server/common"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const tableContests = "contests"

// Contest 对应 contests 表
// status: pending | approved | rejected
// winner_* 只写一次（winner_name 非空即视为已宣布）
type Contest struct {
	ID               int64           `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	Image            string          `db:"image" json:"image"`
	Description      string          `db:"description" json:"description"`
	TaskInstruction  string          `db:"task_instruction" json:"taskInstruction"`
	ContestType      string          `db:"contest_type" json:"contestType"`
	Price            decimal.Decimal `db:"price" json:"price"`
	PrizeMoney       decimal.Decimal `db:"prize_money" json:"prizeMoney"`
	Deadline         int64           `db:"deadline" json:"deadline"` // 毫秒
	CreatorName      string          `db:"creator_name" json:"creatorName"`
	CreatorEmail     string          `db:"creator_email" json:"creatorEmail"`
	CreatorImage     string          `db:"creator_image" json:"creatorImage"`
	Status           string          `db:"status" json:"status"`
	Count            int64           `db:"count" json:"count"` // 已支付参赛人数
	WinnerName       *string         `db:"winner_name" json:"winnerName,omitempty"`
	WinnerEmail      *string         `db:"winner_email" json:"winnerEmail,omitempty"`
	WinnerImage      *string         `db:"winner_image" json:"winnerImage,omitempty"`
	WinnerDeclaredAt *int64          `db:"winner_declared_at" json:"winnerDeclaredAt,omitempty"`
	CreatedAt        int64           `db:"created_at" json:"createdAt"`
	UpdatedAt        int64           `db:"updated_at" json:"updatedAt"`
}

var contestFields = common.EnumFields(Contest{})

// HasWinner 是否已宣布获胜者
func (c *Contest) HasWinner() bool {
	return c.WinnerName != nil && *c.WinnerName != ""
}

// InsertContest 新建比赛，回填自增 ID
func InsertContest(ctx context.Context, exec sqlx.ExtContext, c *Contest) error {
	now := time.Now().UnixMilli()
	c.CreatedAt, c.UpdatedAt = now, now

	sqlStr := `INSERT INTO contests (name, image, description, task_instruction, contest_type, price, prize_money, deadline,
	           creator_name, creator_email, creator_image, status, count, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`
	res, err := exec.ExecContext(ctx, sqlStr,
		c.Name, c.Image, c.Description, c.TaskInstruction, c.ContestType, c.Price, c.PrizeMoney, c.Deadline,
		c.CreatorName, c.CreatorEmail, c.CreatorImage, c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	c.ID = id
	return nil
}

// GetContest 按 ID 查询
func GetContest(ctx context.Context, exec sqlx.QueryerContext, id int64) (*Contest, error) {
	var c Contest
	if err := common.SelectOneCtx(ctx, exec, &c, tableContests, contestFields, g.C("id").Eq(id)); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ContestContent 创建者可修改的内容字段
type ContestContent struct {
	Name            string
	Image           string
	Description     string
	TaskInstruction string
	ContestType     string
	Price           decimal.Decimal
	PrizeMoney      decimal.Decimal
	Deadline        int64
}

// UpdatePendingContest 仅当比赛属于 owner 且仍为 pending 时更新内容，返回是否生效
func UpdatePendingContest(ctx context.Context, exec sqlx.ExtContext, id int64, owner string, cc ContestContent) (bool, error) {
	res, err := common.UpdateCtx(ctx, exec, tableContests, g.Record{
		"name":             cc.Name,
		"image":            cc.Image,
		"description":      cc.Description,
		"task_instruction": cc.TaskInstruction,
		"contest_type":     cc.ContestType,
		"price":            cc.Price.StringFixed(2),
		"prize_money":      cc.PrizeMoney.StringFixed(2),
		"deadline":         cc.Deadline,
		"updated_at":       time.Now().UnixMilli(),
	}, g.C("id").Eq(id), g.C("creator_email").Eq(owner), g.C("status").Eq("pending"))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// DeleteContest 删除比赛；owner 非空时额外要求属于 owner 且仍为 pending
func DeleteContest(ctx context.Context, exec sqlx.ExtContext, id int64, owner string) (bool, error) {
	ex := []exp.Expression{g.C("id").Eq(id)}
	if owner != "" {
		ex = append(ex, g.C("creator_email").Eq(owner), g.C("status").Eq("pending"))
	}
	res, err := common.DeleteCtx(ctx, exec, tableContests, ex...)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// UpdateContestStatus 条件状态迁移：仅当当前状态为 from 时改为 to
func UpdateContestStatus(ctx context.Context, exec sqlx.ExtContext, id int64, from, to string) (bool, error) {
	sqlStr := "UPDATE contests SET status = ?, updated_at = ? WHERE id = ? AND status = ?"
	res, err := exec.ExecContext(ctx, sqlStr, to, time.Now().UnixMilli(), id, from)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// IncrementContestCount 参赛人数原子 +1
func IncrementContestCount(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	sqlStr := "UPDATE contests SET count = count + 1, updated_at = ? WHERE id = ?"
	res, err := exec.ExecContext(ctx, sqlStr, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Winner 获胜者信息
type Winner struct {
	Name  string
	Email string
	Image string
}

// DeclareContestWinner 条件更新：仅当 winner_name 仍为空时写入获胜者，返回是否生效
func DeclareContestWinner(ctx context.Context, exec sqlx.ExtContext, id int64, w Winner, at int64) (bool, error) {
	sqlStr := `UPDATE contests SET winner_name = ?, winner_email = ?, winner_image = ?, winner_declared_at = ?, updated_at = ?
	           WHERE id = ? AND (winner_name IS NULL OR winner_name = '')`
	res, err := exec.ExecContext(ctx, sqlStr, w.Name, w.Email, w.Image, at, at, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ContestQuery 列表查询条件
type ContestQuery struct {
	Status       string
	ContestType  string
	Search       string // 名称 / 类型模糊匹配
	CreatorEmail string
	OnlyWinners  bool
	SortByCount  bool // 按参赛人数降序，否则按创建时间降序
	Offset       uint
	Limit        uint
}

func (q ContestQuery) where() []exp.Expression {
	var ex []exp.Expression
	if q.Status != "" {
		ex = append(ex, g.C("status").Eq(q.Status))
	}
	if q.ContestType != "" {
		ex = append(ex, g.C("contest_type").Eq(q.ContestType))
	}
	if q.CreatorEmail != "" {
		ex = append(ex, g.C("creator_email").Eq(q.CreatorEmail))
	}
	if q.Search != "" {
		like := common.LikeContains(q.Search)
		ex = append(ex, g.Or(g.C("name").Like(like), g.C("contest_type").Like(like)))
	}
	if q.OnlyWinners {
		ex = append(ex, g.C("winner_name").IsNotNull(), g.C("winner_name").Neq(""))
	}
	return ex
}

// ListContests 分页查询比赛，返回当前页与总数
func ListContests(ctx context.Context, db sqlx.QueryerContext, q ContestQuery) ([]Contest, int64, error) {
	ex := q.where()
	order := []exp.OrderedExpression{g.C("id").Desc()}
	if q.SortByCount {
		order = []exp.OrderedExpression{g.C("count").Desc(), g.C("id").Desc()}
	} else if q.OnlyWinners {
		order = []exp.OrderedExpression{g.C("winner_declared_at").Desc(), g.C("id").Desc()}
	}

	var list []Contest
	if err := common.SelectAllCtx(ctx, &list, common.QueryArg{
		Db:     db,
		Table:  tableContests,
		Fields: contestFields,
		Ex:     ex,
		Order:  order,
		Offset: q.Offset,
		Limit:  q.Limit,
	}); err != nil {
		return nil, 0, err
	}
	total, err := common.CountCtx(ctx, db, tableContests, ex...)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// LeaderEntry 排行榜条目
type LeaderEntry struct {
	Email string `db:"email" json:"email"`
	Name  string `db:"name" json:"name"`
	Image string `db:"image" json:"image"`
	Wins  int64  `db:"wins" json:"wins"`
}

// Leaderboard 按获胜次数排序的用户榜
func Leaderboard(ctx context.Context, db sqlx.QueryerContext, limit int) ([]LeaderEntry, error) {
	sqlStr := `SELECT winner_email AS email, MAX(winner_name) AS name, MAX(COALESCE(winner_image, '')) AS image, COUNT(*) AS wins
	           FROM contests WHERE winner_email IS NOT NULL AND winner_email <> ''
	           GROUP BY winner_email ORDER BY wins DESC, email ASC LIMIT ?`
	var list []LeaderEntry
	if err := sqlx.SelectContext(ctx, db, &list, sqlStr, limit); err != nil {
		return nil, err
	}
	return list, nil
}
