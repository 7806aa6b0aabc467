package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"contesthub-server/common/constant"
	"contesthub-server/common/logger"
	"contesthub-server/internal/config"
	infrds "contesthub-server/internal/infra/redis"
	"contesthub-server/internal/metrics"
	"contesthub-server/internal/model"
	"contesthub-server/internal/state"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const popularCacheTTL = 30 * time.Second

// ContestInput 创建 / 修改比赛的内容字段
type ContestInput struct {
	Name            string
	Image           string
	Description     string
	TaskInstruction string
	ContestType     string
	Price           decimal.Decimal
	PrizeMoney      decimal.Decimal
	Deadline        int64 // 毫秒
}

// Creator 创建者身份快照
type Creator struct {
	Email string
	Name  string
	Image string
}

type ContestFilter struct {
	ContestType string
	Search      string
	Status      string
	Page        Page
}

type ActionInput struct {
	ContestID int64
	Action    string
	Operator  string
	TraceID   string
}

type ActionOutput struct {
	ContestID int64  `json:"contestId"`
	Action    string `json:"action"`
	Status    string `json:"status,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

type ContestService interface {
	Popular(ctx context.Context) ([]model.Contest, error)
	ListApproved(ctx context.Context, f ContestFilter) (PageResult[model.Contest], error)
	Get(ctx context.Context, id int64) (*model.Contest, error)
	Create(ctx context.Context, by Creator, in ContestInput) (*model.Contest, error)
	ListByCreator(ctx context.Context, email string, p Page) (PageResult[model.Contest], error)
	Update(ctx context.Context, id int64, owner string, in ContestInput) (*model.Contest, error)
	Delete(ctx context.Context, id int64, owner string) error
	ListAll(ctx context.Context, f ContestFilter) (PageResult[model.Contest], error)
	// ApplyAction 管理员审核：confirm | reject | delete
	ApplyAction(ctx context.Context, in ActionInput) (*ActionOutput, error)
	Winners(ctx context.Context, p Page) (PageResult[model.Contest], error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderEntry, error)
}

type contestService struct {
	contests ContestStore
	events   EventRecorder
	rdb      *goredis.Client // 可选：热门列表缓存
}

func NewContestService(contests ContestStore, events EventRecorder, rdb *goredis.Client) ContestService {
	return &contestService{contests: contests, events: events, rdb: rdb}
}

func storeErr(err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return ErrContestNotFound
	}
	return fmt.Errorf("%w: %v", ErrStore, err)
}

func (s *contestService) Popular(ctx context.Context) ([]model.Contest, error) {
	if s.rdb != nil {
		if bs, err := s.rdb.Get(ctx, infrds.PopularContestsKey()).Bytes(); err == nil && len(bs) > 0 {
			var list []model.Contest
			if json.Unmarshal(bs, &list) == nil {
				return list, nil
			}
		}
	}

	limit := config.GetThreshold(config.ThresholdPopularLimit, 6)
	list, _, err := s.contests.ListContests(ctx, model.ContestQuery{
		Status:      constant.ContestApproved,
		SortByCount: true,
		Limit:       uint(limit),
	})
	if err != nil {
		return nil, storeErr(err)
	}
	if list == nil {
		list = []model.Contest{}
	}
	if s.rdb != nil {
		bs, _ := json.Marshal(list)
		_ = s.rdb.Set(ctx, infrds.PopularContestsKey(), bs, popularCacheTTL).Err()
	}
	return list, nil
}

func (s *contestService) invalidatePopular(ctx context.Context) {
	if s.rdb != nil {
		_ = s.rdb.Del(ctx, infrds.PopularContestsKey()).Err()
	}
}

func (s *contestService) ListApproved(ctx context.Context, f ContestFilter) (PageResult[model.Contest], error) {
	off, lim := f.Page.OffsetLimit()
	list, total, err := s.contests.ListContests(ctx, model.ContestQuery{
		Status:      constant.ContestApproved,
		ContestType: strings.TrimSpace(f.ContestType),
		Search:      strings.TrimSpace(f.Search),
		SortByCount: true,
		Offset:      off,
		Limit:       lim,
	})
	if err != nil {
		return PageResult[model.Contest]{}, storeErr(err)
	}
	return newPageResult(list, total, f.Page), nil
}

func (s *contestService) Get(ctx context.Context, id int64) (*model.Contest, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid contest id", ErrInvalidRequest)
	}
	c, err := s.contests.GetContest(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return c, nil
}

func validateContestInput(in *ContestInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.ContestType = strings.TrimSpace(in.ContestType)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if len(in.Name) > 255 || len(in.ContestType) > 64 || len(in.Image) > 512 {
		return fmt.Errorf("%w: field too long", ErrInvalidRequest)
	}
	if in.Price.IsNegative() || in.PrizeMoney.IsNegative() {
		return fmt.Errorf("%w: price and prizeMoney must not be negative", ErrInvalidRequest)
	}
	if in.Deadline < 0 {
		return fmt.Errorf("%w: invalid deadline", ErrInvalidRequest)
	}
	return nil
}

func (s *contestService) Create(ctx context.Context, by Creator, in ContestInput) (*model.Contest, error) {
	if strings.TrimSpace(by.Email) == "" {
		return nil, fmt.Errorf("%w: creator email is required", ErrInvalidRequest)
	}
	if err := validateContestInput(&in); err != nil {
		return nil, err
	}
	c := &model.Contest{
		Name:            in.Name,
		Image:           in.Image,
		Description:     in.Description,
		TaskInstruction: in.TaskInstruction,
		ContestType:     in.ContestType,
		Price:           in.Price.Round(2),
		PrizeMoney:      in.PrizeMoney.Round(2),
		Deadline:        in.Deadline,
		CreatorName:     by.Name,
		CreatorEmail:    by.Email,
		CreatorImage:    by.Image,
		Status:          constant.ContestPending,
	}
	if err := s.contests.CreateContest(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	logger.InfoCtx(ctx, "contest created", zap.Int64("contest_id", c.ID), zap.String("creator", by.Email))
	return c, nil
}

func (s *contestService) ListByCreator(ctx context.Context, email string, p Page) (PageResult[model.Contest], error) {
	off, lim := p.OffsetLimit()
	list, total, err := s.contests.ListContests(ctx, model.ContestQuery{CreatorEmail: email, Offset: off, Limit: lim})
	if err != nil {
		return PageResult[model.Contest]{}, storeErr(err)
	}
	return newPageResult(list, total, p), nil
}

// ownerCheck 条件写入未生效时区分：不存在 / 非本人 / 状态已锁定
func (s *contestService) ownerCheck(ctx context.Context, id int64, owner string) error {
	c, err := s.contests.GetContest(ctx, id)
	if err != nil {
		return storeErr(err)
	}
	if c.CreatorEmail != owner {
		return ErrForbidden
	}
	if !state.Editable(c.Status) {
		return ErrContestLocked
	}
	return nil
}

func (s *contestService) Update(ctx context.Context, id int64, owner string, in ContestInput) (*model.Contest, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid contest id", ErrInvalidRequest)
	}
	if err := validateContestInput(&in); err != nil {
		return nil, err
	}
	applied, err := s.contests.UpdatePendingContest(ctx, id, owner, model.ContestContent{
		Name:            in.Name,
		Image:           in.Image,
		Description:     in.Description,
		TaskInstruction: in.TaskInstruction,
		ContestType:     in.ContestType,
		Price:           in.Price.Round(2),
		PrizeMoney:      in.PrizeMoney.Round(2),
		Deadline:        in.Deadline,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !applied {
		if err := s.ownerCheck(ctx, id, owner); err != nil {
			return nil, err
		}
		// 内容与原值相同（MySQL RowsAffected=0）
	}
	if s.events != nil {
		_ = s.events.RecordAudit(ctx, &model.ContestAudit{
			ContestID: id,
			EventType: constant.AuditContentUpdated,
			PrevState: constant.ContestPending,
			NextState: constant.ContestPending,
			Operator:  owner,
			Payload:   "{}",
			TraceID:   logger.GetTraceID(ctx),
		})
	}
	return s.Get(ctx, id)
}

func (s *contestService) Delete(ctx context.Context, id int64, owner string) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid contest id", ErrInvalidRequest)
	}
	deleted, err := s.contests.DeleteContest(ctx, id, owner)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !deleted {
		if err := s.ownerCheck(ctx, id, owner); err != nil {
			return err
		}
		return ErrContestNotFound
	}
	logger.InfoCtx(ctx, "contest deleted by creator", zap.Int64("contest_id", id), zap.String("creator", owner))
	return nil
}

func (s *contestService) ListAll(ctx context.Context, f ContestFilter) (PageResult[model.Contest], error) {
	off, lim := f.Page.OffsetLimit()
	list, total, err := s.contests.ListContests(ctx, model.ContestQuery{
		Status:      strings.TrimSpace(f.Status),
		ContestType: strings.TrimSpace(f.ContestType),
		Search:      strings.TrimSpace(f.Search),
		Offset:      off,
		Limit:       lim,
	})
	if err != nil {
		return PageResult[model.Contest]{}, storeErr(err)
	}
	return newPageResult(list, total, f.Page), nil
}

func (s *contestService) ApplyAction(ctx context.Context, in ActionInput) (*ActionOutput, error) {
	action := strings.ToLower(strings.TrimSpace(in.Action))
	switch action {
	case constant.ActionConfirm, constant.ActionReject, constant.ActionDelete:
	default:
		metrics.RecordContestAction("invalid", "fail")
		return nil, ErrInvalidAction
	}
	if in.ContestID <= 0 {
		metrics.RecordContestAction(action, "fail")
		return nil, fmt.Errorf("%w: invalid contest id", ErrInvalidRequest)
	}

	c, err := s.contests.GetContest(ctx, in.ContestID)
	if err != nil {
		metrics.RecordContestAction(action, "fail")
		return nil, storeErr(err)
	}

	out := &ActionOutput{ContestID: in.ContestID, Action: action}
	next := ""
	if action == constant.ActionDelete {
		deleted, err := s.contests.DeleteContest(ctx, in.ContestID, "")
		if err != nil {
			metrics.RecordContestAction(action, "fail")
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		if !deleted {
			metrics.RecordContestAction(action, "fail")
			return nil, ErrContestNotFound
		}
		out.Deleted = true
		next = "deleted"
	} else {
		next, err = state.NextStatus(c.Status, action)
		if err != nil {
			metrics.RecordContestAction(action, "fail")
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, action)
		}
		// 以读取到的状态为前提的条件更新，并发审核只有一方生效
		applied, err := s.contests.UpdateContestStatus(ctx, in.ContestID, c.Status, next)
		if err != nil {
			metrics.RecordContestAction(action, "fail")
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		if !applied {
			metrics.RecordContestAction(action, "fail")
			return nil, fmt.Errorf("%w: contest status changed concurrently", ErrInvalidTransition)
		}
		out.Status = next
	}

	s.invalidatePopular(ctx)
	s.recordAction(ctx, in, c.Status, next)
	metrics.RecordContestAction(action, "success")
	logger.InfoCtx(ctx, "contest action applied",
		zap.Int64("contest_id", in.ContestID), zap.String("action", action),
		zap.String("prev", c.Status), zap.String("next", next), zap.String("operator", in.Operator))
	return out, nil
}

func (s *contestService) recordAction(ctx context.Context, in ActionInput, prev, next string) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"event":      constant.TopicContestStatusChanged,
		"contest_id": in.ContestID,
		"action":     in.Action,
		"prev":       prev,
		"next":       next,
		"operator":   in.Operator,
	}
	b, _ := json.Marshal(payload)
	if err := s.events.RecordAudit(ctx, &model.ContestAudit{
		ContestID: in.ContestID,
		EventType: constant.AuditStatusAction,
		PrevState: prev,
		NextState: next,
		Operator:  in.Operator,
		Payload:   string(b),
		TraceID:   in.TraceID,
	}); err != nil {
		logger.WarnCtx(ctx, "audit write failed", zap.Int64("contest_id", in.ContestID), zap.Error(err))
	}
	bizKey := strconv.FormatInt(in.ContestID, 10) + ":" + next
	if err := s.events.RecordOutbox(ctx, constant.TopicContestStatusChanged, bizKey, payload); err != nil {
		logger.WarnCtx(ctx, "outbox write failed", zap.String("topic", constant.TopicContestStatusChanged), zap.Error(err))
	}
}

func (s *contestService) Winners(ctx context.Context, p Page) (PageResult[model.Contest], error) {
	off, lim := p.OffsetLimit()
	list, total, err := s.contests.ListContests(ctx, model.ContestQuery{OnlyWinners: true, Offset: off, Limit: lim})
	if err != nil {
		return PageResult[model.Contest]{}, storeErr(err)
	}
	return newPageResult(list, total, p), nil
}

func (s *contestService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	list, err := s.contests.Leaderboard(ctx, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	if list == nil {
		list = []model.LeaderEntry{}
	}
	return list, nil
}
