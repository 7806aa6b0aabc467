package model

import (
	"context"

	"contesthub-server/common/constant"

	"github.com/jmoiron/sqlx"
)

// Store 基于 MySQL 的存储实现，供 service 层注入
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *sqlx.DB { return s.db }

// ---- contests ----

func (s *Store) CreateContest(ctx context.Context, c *Contest) error {
	return InsertContest(ctx, s.db, c)
}

func (s *Store) GetContest(ctx context.Context, id int64) (*Contest, error) {
	return GetContest(ctx, s.db, id)
}

func (s *Store) UpdatePendingContest(ctx context.Context, id int64, owner string, cc ContestContent) (bool, error) {
	return UpdatePendingContest(ctx, s.db, id, owner, cc)
}

func (s *Store) DeleteContest(ctx context.Context, id int64, owner string) (bool, error) {
	return DeleteContest(ctx, s.db, id, owner)
}

func (s *Store) UpdateContestStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	return UpdateContestStatus(ctx, s.db, id, from, to)
}

func (s *Store) IncrementCount(ctx context.Context, id int64) error {
	return IncrementContestCount(ctx, s.db, id)
}

func (s *Store) DeclareWinner(ctx context.Context, id int64, w Winner, at int64) (bool, error) {
	return DeclareContestWinner(ctx, s.db, id, w, at)
}

func (s *Store) ListContests(ctx context.Context, q ContestQuery) ([]Contest, int64, error) {
	return ListContests(ctx, s.db, q)
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderEntry, error) {
	return Leaderboard(ctx, s.db, limit)
}

// ---- payments ----

func (s *Store) TryInsertOnce(ctx context.Context, p *Payment) (bool, error) {
	return TryInsertPayment(ctx, s.db, p)
}

func (s *Store) GetPaymentBySession(ctx context.Context, sessionID string) (*Payment, error) {
	return GetPaymentBySession(ctx, s.db, sessionID)
}

func (s *Store) FindPaidPayment(ctx context.Context, contestID int64, email string) (*Payment, error) {
	return FindPaidPayment(ctx, s.db, contestID, email, constant.PaymentPaid)
}

func (s *Store) ListPaymentsByEmail(ctx context.Context, email string, offset, limit uint) ([]Payment, error) {
	return ListPaymentsByEmail(ctx, s.db, email, offset, limit)
}

// ---- users ----

func (s *Store) UpsertUser(ctx context.Context, u *User) (bool, error) {
	return UpsertUser(ctx, s.db, u, constant.RoleUser)
}

func (s *Store) GetUser(ctx context.Context, email string) (*User, error) {
	return GetUserByEmail(ctx, s.db, email)
}

func (s *Store) UpdateUserRole(ctx context.Context, email, role string) error {
	return UpdateUserRole(ctx, s.db, email, role)
}

func (s *Store) ListUsers(ctx context.Context, offset, limit uint) ([]User, int64, error) {
	return ListUsers(ctx, s.db, offset, limit)
}

// ---- submissions ----

func (s *Store) InsertSubmission(ctx context.Context, sub *Submission) (bool, error) {
	return InsertSubmission(ctx, s.db, sub)
}

func (s *Store) FindSubmission(ctx context.Context, contestID int64, email string) (*Submission, error) {
	return FindSubmission(ctx, s.db, contestID, email)
}

func (s *Store) ListSubmissions(ctx context.Context, contestID int64) ([]Submission, error) {
	return ListSubmissions(ctx, s.db, contestID)
}

// ---- audit / outbox ----

func (s *Store) RecordAudit(ctx context.Context, a *ContestAudit) error {
	return a.Insert(ctx, s.db)
}

func (s *Store) RecordOutbox(ctx context.Context, topic, bizKey string, payload any) error {
	return CreateOutbox(ctx, s.db, topic, bizKey, payload)
}
