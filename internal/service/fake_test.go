package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"contesthub-server/common/constant"
	"contesthub-server/internal/infra/payment"
	"contesthub-server/internal/model"
)

// memStore 内存版存储，语义与 MySQL 实现一致：
// payments.session_id 唯一、winner 条件写入、status 条件迁移、submissions (contest_id,email) 唯一
type memStore struct {
	mu          sync.Mutex
	nextID      int64
	contests    map[int64]*model.Contest
	payments    map[string]*model.Payment
	users       map[string]*model.User
	submissions map[string]*model.Submission
	audits      []*model.ContestAudit
	outbox      []string

	failIncrement error
}

func newMemStore() *memStore {
	return &memStore{
		contests:    map[int64]*model.Contest{},
		payments:    map[string]*model.Payment{},
		users:       map[string]*model.User{},
		submissions: map[string]*model.Submission{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// seedContest 直接写入一条比赛，返回其 ID
func (m *memStore) seedContest(c model.Contest) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.id()
	}
	if c.Status == "" {
		c.Status = constant.ContestApproved
	}
	m.contests[c.ID] = &c
	return c.ID
}

func (m *memStore) contest(id int64) model.Contest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.contests[id]
}

func (m *memStore) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func (m *memStore) CreateContest(_ context.Context, c *model.Contest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	c.CreatedAt = time.Now().UnixMilli()
	cp := *c
	m.contests[c.ID] = &cp
	return nil
}

func (m *memStore) GetContest(_ context.Context, id int64) (*model.Contest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contests[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) UpdatePendingContest(_ context.Context, id int64, owner string, cc model.ContestContent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contests[id]
	if !ok || c.CreatorEmail != owner || c.Status != constant.ContestPending {
		return false, nil
	}
	c.Name, c.Image, c.Description, c.TaskInstruction = cc.Name, cc.Image, cc.Description, cc.TaskInstruction
	c.ContestType, c.Price, c.PrizeMoney, c.Deadline = cc.ContestType, cc.Price, cc.PrizeMoney, cc.Deadline
	return true, nil
}

func (m *memStore) DeleteContest(_ context.Context, id int64, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contests[id]
	if !ok {
		return false, nil
	}
	if owner != "" && (c.CreatorEmail != owner || c.Status != constant.ContestPending) {
		return false, nil
	}
	delete(m.contests, id)
	return true, nil
}

func (m *memStore) UpdateContestStatus(_ context.Context, id int64, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contests[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (m *memStore) IncrementCount(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIncrement != nil {
		return m.failIncrement
	}
	c, ok := m.contests[id]
	if !ok {
		return model.ErrNotFound
	}
	c.Count++
	return nil
}

func (m *memStore) DeclareWinner(_ context.Context, id int64, w model.Winner, at int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contests[id]
	if !ok || c.HasWinner() {
		return false, nil
	}
	name, email, image := w.Name, w.Email, w.Image
	c.WinnerName, c.WinnerEmail, c.WinnerImage, c.WinnerDeclaredAt = &name, &email, &image, &at
	return true, nil
}

func (m *memStore) ListContests(_ context.Context, q model.ContestQuery) ([]model.Contest, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []model.Contest
	for _, c := range m.contests {
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		if q.CreatorEmail != "" && c.CreatorEmail != q.CreatorEmail {
			continue
		}
		if q.ContestType != "" && c.ContestType != q.ContestType {
			continue
		}
		if q.OnlyWinners && !c.HasWinner() {
			continue
		}
		list = append(list, *c)
	}
	sort.Slice(list, func(i, j int) bool {
		if q.SortByCount && list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].ID > list[j].ID
	})
	total := int64(len(list))
	if int(q.Offset) >= len(list) {
		return nil, total, nil
	}
	list = list[q.Offset:]
	if q.Limit > 0 && int(q.Limit) < len(list) {
		list = list[:q.Limit]
	}
	return list, total, nil
}

func (m *memStore) Leaderboard(_ context.Context, limit int) ([]model.LeaderEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wins := map[string]*model.LeaderEntry{}
	for _, c := range m.contests {
		if !c.HasWinner() || c.WinnerEmail == nil || *c.WinnerEmail == "" {
			continue
		}
		e, ok := wins[*c.WinnerEmail]
		if !ok {
			e = &model.LeaderEntry{Email: *c.WinnerEmail, Name: *c.WinnerName}
			wins[*c.WinnerEmail] = e
		}
		e.Wins++
	}
	var list []model.LeaderEntry
	for _, e := range wins {
		list = append(list, *e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Wins != list[j].Wins {
			return list[i].Wins > list[j].Wins
		}
		return list[i].Email < list[j].Email
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memStore) TryInsertOnce(_ context.Context, p *model.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.SessionID]; ok {
		return false, nil
	}
	p.ID = m.id()
	cp := *p
	m.payments[p.SessionID] = &cp
	return true, nil
}

func (m *memStore) GetPaymentBySession(_ context.Context, sessionID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[sessionID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) FindPaidPayment(_ context.Context, contestID int64, email string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ContestID == contestID && p.Email == email && p.Status == constant.PaymentPaid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (m *memStore) ListPaymentsByEmail(_ context.Context, email string, offset, limit uint) ([]model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []model.Payment
	for _, p := range m.payments {
		if p.Email == email {
			list = append(list, *p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	if int(offset) >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && int(limit) < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (m *memStore) UpsertUser(_ context.Context, u *model.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UnixMilli()
	if prev, ok := m.users[u.Email]; ok {
		prev.LastLoginAt = now
		return false, nil
	}
	cp := *u
	cp.ID = m.id()
	cp.Role = constant.RoleUser
	cp.CreatedAt, cp.LastLoginAt = now, now
	m.users[u.Email] = &cp
	return true, nil
}

func (m *memStore) GetUser(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdateUserRole(_ context.Context, email, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return model.ErrNotFound
	}
	u.Role = role
	return nil
}

func (m *memStore) ListUsers(_ context.Context, offset, limit uint) ([]model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []model.User
	for _, u := range m.users {
		list = append(list, *u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	total := int64(len(list))
	if int(offset) >= len(list) {
		return nil, total, nil
	}
	list = list[offset:]
	if limit > 0 && int(limit) < len(list) {
		list = list[:limit]
	}
	return list, total, nil
}

func submissionKey(contestID int64, email string) string {
	return fmt.Sprintf("%d#%s", contestID, email)
}

func (m *memStore) InsertSubmission(_ context.Context, s *model.Submission) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := submissionKey(s.ContestID, s.Email)
	if _, ok := m.submissions[key]; ok {
		return false, nil
	}
	s.ID = m.id()
	cp := *s
	m.submissions[key] = &cp
	return true, nil
}

func (m *memStore) FindSubmission(_ context.Context, contestID int64, email string) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[submissionKey(contestID, email)]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSubmissions(_ context.Context, contestID int64) ([]model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []model.Submission
	for _, s := range m.submissions {
		if s.ContestID == contestID {
			list = append(list, *s)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *memStore) RecordAudit(_ context.Context, a *model.ContestAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, a)
	return nil
}

func (m *memStore) RecordOutbox(_ context.Context, topic, bizKey string, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, topic+":"+bizKey)
	return nil
}

func (m *memStore) outboxTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outbox...)
}

// MockProcessor 可替换行为的支付平台
type MockProcessor struct {
	mu            sync.Mutex
	CreateFn      func(ctx context.Context, p payment.CheckoutParams) (*payment.Session, error)
	RetrieveFn    func(ctx context.Context, sessionID string) (*payment.Session, error)
	createCalls   int
	retrieveCalls int
}

func (p *MockProcessor) Name() string { return "mock" }

func (p *MockProcessor) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.Session, error) {
	p.mu.Lock()
	p.createCalls++
	p.mu.Unlock()
	if p.CreateFn == nil {
		return nil, errors.New("create not configured")
	}
	return p.CreateFn(ctx, params)
}

func (p *MockProcessor) RetrieveSession(ctx context.Context, sessionID string) (*payment.Session, error) {
	p.mu.Lock()
	p.retrieveCalls++
	p.mu.Unlock()
	if p.RetrieveFn == nil {
		return nil, errors.New("retrieve not configured")
	}
	return p.RetrieveFn(ctx, sessionID)
}

func (p *MockProcessor) calls() (create, retrieve int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createCalls, p.retrieveCalls
}

// paidSessions 返回一组已支付会话：session id -> (contest, email, 金额)
func paidSessions(sessions map[string]*payment.Session) func(context.Context, string) (*payment.Session, error) {
	return func(_ context.Context, id string) (*payment.Session, error) {
		s, ok := sessions[id]
		if !ok {
			return nil, payment.ErrSessionNotFound
		}
		cp := *s
		return &cp, nil
	}
}
