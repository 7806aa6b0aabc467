package model

import (
	"context"
	"time"

	"contesthub-server/common"

	g "github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

const tableUsers = "users"

// User 对应 users 表（email 唯一）
type User struct {
	ID          int64  `db:"id" json:"id"`
	Email       string `db:"email" json:"email"`
	Name        string `db:"name" json:"name"`
	Image       string `db:"image" json:"image"`
	Role        string `db:"role" json:"role"`
	CreatedAt   int64  `db:"created_at" json:"createdAt"`
	LastLoginAt int64  `db:"last_login_at" json:"lastLoginAt"`
}

var userFields = common.EnumFields(User{})

// UpsertUser 首次登录插入（role=defaultRole），已存在则刷新 last_login_at 与非空的资料字段
// 返回 true 表示新建
func UpsertUser(ctx context.Context, exec sqlx.ExtContext, u *User, defaultRole string) (bool, error) {
	now := time.Now().UnixMilli()
	sqlStr := `INSERT INTO users (email, name, image, role, created_at, last_login_at) VALUES (?, ?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE last_login_at = VALUES(last_login_at),
	           name = IF(VALUES(name) <> '', VALUES(name), name),
	           image = IF(VALUES(image) <> '', VALUES(image), image)`
	res, err := exec.ExecContext(ctx, sqlStr, u.Email, u.Name, u.Image, defaultRole, now, now)
	if err != nil {
		return false, err
	}
	// MySQL: 插入返回 1，更新返回 2
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// GetUserByEmail 按 email 查询
func GetUserByEmail(ctx context.Context, exec sqlx.QueryerContext, email string) (*User, error) {
	var u User
	if err := common.SelectOneCtx(ctx, exec, &u, tableUsers, userFields, g.C("email").Eq(email)); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UpdateUserRole 修改角色，用户不存在返回 ErrNotFound
func UpdateUserRole(ctx context.Context, exec sqlx.ExtContext, email, role string) error {
	res, err := common.UpdateCtx(ctx, exec, tableUsers, g.Record{"role": role}, g.C("email").Eq(email))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// 角色未变化时 RowsAffected 也为 0，再确认一次是否存在
		if _, err := GetUserByEmail(ctx, exec, email); err != nil {
			return err
		}
	}
	return nil
}

// ListUsers 分页查询用户
func ListUsers(ctx context.Context, db sqlx.QueryerContext, offset, limit uint) ([]User, int64, error) {
	var list []User
	if err := common.SelectAllCtx(ctx, &list, common.QueryArg{
		Db:     db,
		Table:  tableUsers,
		Fields: userFields,
		Order:  []exp.OrderedExpression{g.C("id").Desc()},
		Offset: offset,
		Limit:  limit,
	}); err != nil {
		return nil, 0, err
	}
	total, err := common.CountCtx(ctx, db, tableUsers)
	return list, total, err
}
