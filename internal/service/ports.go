package service

import (
	"context"

	"contesthub-server/internal/model"
)

// 存储端口：由 model.Store（MySQL）实现，测试中使用内存实现

type ContestStore interface {
	CreateContest(ctx context.Context, c *model.Contest) error
	GetContest(ctx context.Context, id int64) (*model.Contest, error)
	UpdatePendingContest(ctx context.Context, id int64, owner string, cc model.ContestContent) (bool, error)
	DeleteContest(ctx context.Context, id int64, owner string) (bool, error)
	UpdateContestStatus(ctx context.Context, id int64, from, to string) (bool, error)
	// IncrementCount 参赛人数原子 +1，仅由结算首插分支调用
	IncrementCount(ctx context.Context, id int64) error
	// DeclareWinner 仅当获胜者未设置时写入，返回是否生效
	DeclareWinner(ctx context.Context, id int64, w model.Winner, at int64) (bool, error)
	ListContests(ctx context.Context, q model.ContestQuery) ([]model.Contest, int64, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderEntry, error)
}

type PaymentStore interface {
	// TryInsertOnce 以 session id 为唯一键仅插入一次，返回是否真正插入
	TryInsertOnce(ctx context.Context, p *model.Payment) (bool, error)
	GetPaymentBySession(ctx context.Context, sessionID string) (*model.Payment, error)
	FindPaidPayment(ctx context.Context, contestID int64, email string) (*model.Payment, error)
	ListPaymentsByEmail(ctx context.Context, email string, offset, limit uint) ([]model.Payment, error)
}

type UserStore interface {
	UpsertUser(ctx context.Context, u *model.User) (bool, error)
	GetUser(ctx context.Context, email string) (*model.User, error)
	UpdateUserRole(ctx context.Context, email, role string) error
	ListUsers(ctx context.Context, offset, limit uint) ([]model.User, int64, error)
}

type SubmissionStore interface {
	InsertSubmission(ctx context.Context, s *model.Submission) (bool, error)
	FindSubmission(ctx context.Context, contestID int64, email string) (*model.Submission, error)
	ListSubmissions(ctx context.Context, contestID int64) ([]model.Submission, error)
}

// EventRecorder 审计与 outbox 事件（在不变量写入成功之后尽力写入，失败只记日志）
type EventRecorder interface {
	RecordAudit(ctx context.Context, a *model.ContestAudit) error
	RecordOutbox(ctx context.Context, topic, bizKey string, payload any) error
}
