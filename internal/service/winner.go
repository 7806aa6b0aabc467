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
	"contesthub-server/internal/metrics"
	"contesthub-server/internal/model"

	"go.uber.org/zap"
)

const (
	MsgWinnerDeclared  = "winner declared"
	MsgAlreadyDeclared = "already declared"
)

type DeclareWinnerInput struct {
	ContestID   int64
	Caller      string // 当前登录的创建者 email
	WinnerName  string
	WinnerEmail string
	WinnerImage string
	TraceID     string
}

type DeclareWinnerOutput struct {
	Declared      bool   `json:"declared"`
	ModifiedCount int    `json:"modifiedCount"`
	Message       string `json:"message"`
	DeclaredAt    int64  `json:"declaredAt,omitempty"`
}

type WinnerService interface {
	// DeclareWinner 首次宣布生效；已宣布时返回 Declared=false 的“already declared”结果（非错误）
	DeclareWinner(ctx context.Context, in DeclareWinnerInput) (*DeclareWinnerOutput, error)
}

type winnerService struct {
	contests ContestStore
	events   EventRecorder
}

func NewWinnerService(contests ContestStore, events EventRecorder) WinnerService {
	return &winnerService{contests: contests, events: events}
}

func (s *winnerService) DeclareWinner(ctx context.Context, in DeclareWinnerInput) (*DeclareWinnerOutput, error) {
	in.WinnerName = strings.TrimSpace(in.WinnerName)
	if in.ContestID <= 0 || in.WinnerName == "" {
		metrics.RecordWinner("fail")
		return nil, fmt.Errorf("%w: contest id and winnerName are required", ErrInvalidRequest)
	}

	contest, err := s.contests.GetContest(ctx, in.ContestID)
	if err != nil {
		metrics.RecordWinner("fail")
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if contest.CreatorEmail != in.Caller {
		metrics.RecordWinner("fail")
		logger.WarnCtx(ctx, "declare winner rejected: not owner",
			zap.Int64("contest_id", in.ContestID), zap.String("caller", in.Caller))
		return nil, ErrForbidden
	}

	already := &DeclareWinnerOutput{Declared: false, ModifiedCount: 0, Message: MsgAlreadyDeclared}
	if contest.HasWinner() {
		metrics.RecordWinner("already_declared")
		return already, nil
	}

	// 条件更新：写入本身以“获胜者仍为空”为前提，并发宣布只有一方生效
	now := time.Now().UnixMilli()
	w := model.Winner{Name: in.WinnerName, Email: strings.TrimSpace(in.WinnerEmail), Image: strings.TrimSpace(in.WinnerImage)}
	applied, err := s.contests.DeclareWinner(ctx, in.ContestID, w, now)
	if err != nil {
		metrics.RecordWinner("fail")
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if !applied {
		metrics.RecordWinner("already_declared")
		return already, nil
	}

	s.recordEvents(ctx, in, w, now)
	metrics.RecordWinner("declared")
	logger.InfoCtx(ctx, "winner declared",
		zap.Int64("contest_id", in.ContestID), zap.String("winner_email", w.Email), zap.String("caller", in.Caller))
	return &DeclareWinnerOutput{Declared: true, ModifiedCount: 1, Message: MsgWinnerDeclared, DeclaredAt: now}, nil
}

func (s *winnerService) recordEvents(ctx context.Context, in DeclareWinnerInput, w model.Winner, at int64) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"event":        constant.TopicWinnerDeclared,
		"contest_id":   in.ContestID,
		"winner_name":  w.Name,
		"winner_email": w.Email,
		"winner_image": w.Image,
		"declared_at":  at,
	}
	b, _ := json.Marshal(payload)
	audit := &model.ContestAudit{
		ContestID: in.ContestID,
		EventType: constant.AuditWinnerDeclared,
		PrevState: "unset",
		NextState: "declared",
		Operator:  in.Caller,
		Payload:   string(b),
		TraceID:   in.TraceID,
	}
	if err := s.events.RecordAudit(ctx, audit); err != nil {
		logger.WarnCtx(ctx, "audit write failed", zap.Int64("contest_id", in.ContestID), zap.Error(err))
	}
	if err := s.events.RecordOutbox(ctx, constant.TopicWinnerDeclared, strconv.FormatInt(in.ContestID, 10), payload); err != nil {
		logger.WarnCtx(ctx, "outbox write failed", zap.String("topic", constant.TopicWinnerDeclared), zap.Error(err))
	}
}
